package model

import (
	"fmt"
	"strings"
	"time"
)

// RuleType identifies which field of an observation a rule matches against.
type RuleType string

// Rule type constants.
const (
	RuleTypeApp           RuleType = "app"
	RuleTypeDomain        RuleType = "domain"
	RuleTypeKeyword       RuleType = "keyword"
	RuleTypeDomainKeyword RuleType = "domain_keyword"
	RuleTypeFilePath      RuleType = "file_path"
)

// MatchMode controls how a rule's pattern is compared.
type MatchMode string

// Match mode constants.
const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchRegex    MatchMode = "regex"
)

// CategoryRule represents a single matching rule owned by a category.
// Rules are deleted when their owning category is deleted.
type CategoryRule struct {
	CreatedAt  time.Time
	Type       RuleType
	Pattern    string
	Match      MatchMode
	ID         int
	CategoryID int
}

// Validate ensures the rule has a valid type, match mode, and pattern.
func (r *CategoryRule) Validate() error {
	switch r.Type {
	case RuleTypeApp, RuleTypeDomain, RuleTypeKeyword, RuleTypeDomainKeyword, RuleTypeFilePath:
	default:
		return fmt.Errorf("invalid rule type: %q", r.Type)
	}

	switch r.Match {
	case MatchExact, MatchContains, MatchRegex:
	default:
		return fmt.Errorf("invalid match mode: %q", r.Match)
	}

	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("rule pattern cannot be empty")
	}

	if r.Type == RuleTypeDomainKeyword {
		domain, keyword, ok := strings.Cut(r.Pattern, "|")
		if !ok || strings.TrimSpace(domain) == "" || strings.TrimSpace(keyword) == "" {
			return fmt.Errorf("domain_keyword pattern must be %q, got %q", "<domain>|<keyword>", r.Pattern)
		}
	}

	return nil
}

// CompoundPattern splits a domain_keyword pattern into its domain and
// keyword halves. The split happens at the first pipe so keywords may
// themselves contain pipes.
func (r *CategoryRule) CompoundPattern() (domain, keyword string, ok bool) {
	if r.Type != RuleTypeDomainKeyword {
		return "", "", false
	}
	return strings.Cut(r.Pattern, "|")
}
