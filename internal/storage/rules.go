package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chronolens/internal/model"
)

const ruleColumns = `id, category_id, type, pattern, match_mode, created_at`

// GetRules returns every rule in the store.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM category_rules ORDER BY category_id, id`)
}

// GetRulesByCategory returns the rules owned by one category.
func (s *SQLiteStorage) GetRulesByCategory(ctx context.Context, categoryID int) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM category_rules WHERE category_id = ? ORDER BY id`, categoryID)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, query string, args ...any) ([]model.CategoryRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []model.CategoryRule
	for rows.Next() {
		var rule model.CategoryRule
		if err := rows.Scan(&rule.ID, &rule.CategoryID, &rule.Type, &rule.Pattern, &rule.Match, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// CreateRule validates and inserts a rule, returning it with its id.
// Invalid type/mode combinations are rejected here so they are never
// representable in the database.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.CategoryRule) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	owner, err := s.GetCategoryByID(ctx, rule.CategoryID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("category %d: %w", rule.CategoryID, ErrNotFound)
	}
	if owner.IsSentinel() {
		return nil, fmt.Errorf("%w: the sentinel category cannot own rules", ErrInvalidRule)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO category_rules (category_id, type, pattern, match_mode, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rule.CategoryID, rule.Type, rule.Pattern, rule.Match, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule id: %w", err)
	}

	created := *rule
	created.ID = int(id)
	created.CreatedAt = now

	slog.Info("created rule",
		"id", created.ID,
		"category_id", created.CategoryID,
		"type", created.Type,
		"pattern", created.Pattern)
	return &created, nil
}

// UpdateRule updates a rule's pattern, type, and match mode.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if rule.ID <= 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE category_rules
		SET type = ?, pattern = ?, match_mode = ?
		WHERE id = ?`,
		rule.Type, rule.Pattern, rule.Match, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.ID, ErrNotFound)
	}
	return nil
}

// DeleteRule removes a single rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM category_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}
	return nil
}
