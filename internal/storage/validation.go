package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chronolens/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidRule     = errors.New("invalid rule")
	ErrInvalidRecord   = errors.New("invalid activity record")
	ErrSentinelDelete  = errors.New("the uncategorized category cannot be deleted")
	ErrNotFound        = errors.New("not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCategory validates a category before writing it.
func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}

	switch category.Productivity {
	case model.ProductivityProductive, model.ProductivityNeutral, model.ProductivityDistraction, "":
	default:
		return fmt.Errorf("%w: unknown productivity type %q", ErrInvalidCategory, category.Productivity)
	}

	return nil
}

// validateRule validates a rule at the store boundary so invalid
// type/mode combinations are never representable in the database.
func validateRule(rule *model.CategoryRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category id", ErrInvalidRule)
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// validateRecord validates an activity record before insertion.
func validateRecord(record *model.ActivityRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(record.AppName) == "" {
		return fmt.Errorf("%w: missing app name", ErrInvalidRecord)
	}
	if record.SessionID <= 0 {
		return fmt.Errorf("%w: missing session id", ErrInvalidRecord)
	}
	if record.StartTime.IsZero() || record.EndTime.IsZero() {
		return fmt.Errorf("%w: missing timestamps", ErrInvalidRecord)
	}
	if !record.EndTime.After(record.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidRecord)
	}
	if record.Duration != record.EndTime.Sub(record.StartTime) {
		return fmt.Errorf("%w: duration does not equal end minus start", ErrInvalidRecord)
	}
	return nil
}
