// Package categorize implements the rule-cascade categorization engine.
//
// Classification is deterministic and explainable: rules are evaluated in
// four precedence stages (app, compound domain+keyword, plain domain,
// keyword), each stage checked across every category in priority order
// before the next stage is considered. A low-priority category's app rule
// therefore always outranks a high-priority category's domain rule.
package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"chronolens/internal/extract"
	"chronolens/internal/model"
	"chronolens/internal/service"
)

// Engine assigns a category to each observation. The rule snapshot is
// immutable and swapped atomically on Reload, so an in-flight Categorize
// never sees a half-updated rule set.
type Engine struct {
	store    service.RuleStore
	snapshot atomic.Pointer[snapshot]
}

// New builds an engine and loads the initial rule snapshot from the store.
func New(ctx context.Context, store service.RuleStore) (*Engine, error) {
	e := &Engine{store: store}
	if err := e.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load rule snapshot: %w", err)
	}
	return e, nil
}

// Reload rebuilds the cached snapshot from the rule store and swaps it in
// atomically. Callers invoke it after every category or rule mutation;
// correctness over incremental updates, since rule sets are small and
// mutations are user-initiated.
func (e *Engine) Reload(ctx context.Context) error {
	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	rules, err := e.store.GetRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	snap := buildSnapshot(categories, rules)
	if snap.sentinel == nil {
		return fmt.Errorf("sentinel category %q missing from store", model.SentinelCategoryName)
	}

	e.snapshot.Store(snap)
	slog.Debug("rule snapshot reloaded",
		"categories", len(categories),
		"rules", len(rules))
	return nil
}

// Categorize maps an observation to exactly one category id. It never
// fails: malformed URLs degrade to "no domain available" and inputs that
// match nothing fall through to the sentinel category.
func (e *Engine) Categorize(input model.ActivityInput) model.CategorizationResult {
	snap := e.snapshot.Load()

	appName := strings.ToLower(input.AppName)
	haystack := strings.ToLower(input.Title) + " " + strings.ToLower(input.URL)

	var hostname string
	if bc := extract.FromURL(input.URL); bc != nil {
		hostname = bc.Domain
	}

	for _, stage := range []model.CascadeStage{
		model.StageApp,
		model.StageDomainKeyword,
		model.StageDomain,
		model.StageKeyword,
	} {
		// Categories are pre-sorted by priority descending; the first
		// category with a match at this stage wins.
		for _, cat := range snap.categories {
			matches := snap.stageMatches(stage, cat.ID, stageInput{
				appName:  appName,
				filePath: input.FilePath,
				hostname: hostname,
				haystack: haystack,
			})
			if len(matches) > 0 {
				return model.CategorizationResult{
					CategoryID:   cat.ID,
					Confidence:   confidence(stage, len(matches), cat.ID, input.RecentCategoryIDs),
					MatchedRules: matches,
				}
			}
		}
	}

	return model.CategorizationResult{
		CategoryID:   snap.sentinel.ID,
		Confidence:   0,
		MatchedRules: nil,
	}
}

// IsPassive reports whether the category's content is consumed without
// continuous input (video, calls). The tracker uses it to suppress idle
// detection.
func (e *Engine) IsPassive(categoryID int) bool {
	snap := e.snapshot.Load()
	if cat, ok := snap.byID[categoryID]; ok {
		return cat.IsPassive
	}
	return false
}

// Category returns the cached category for an id, or nil if unknown.
func (e *Engine) Category(categoryID int) *model.Category {
	snap := e.snapshot.Load()
	if cat, ok := snap.byID[categoryID]; ok {
		return cat
	}
	return nil
}

// Sentinel returns the always-present fallback category.
func (e *Engine) Sentinel() *model.Category {
	return e.snapshot.Load().sentinel
}

// Stage confidence base values. Confidence exists purely for
// explainability; the winning category never depends on it.
const (
	confidenceApp           = 0.95
	confidenceDomainKeyword = 0.9
	confidenceDomain        = 0.85
	confidenceKeyword       = 0.6
	confidenceRepeatBonus   = 0.03
	confidenceExtraRule     = 0.01
)

func confidence(stage model.CascadeStage, matchCount, categoryID int, recent []int) float64 {
	var base float64
	switch stage {
	case model.StageApp:
		base = confidenceApp
	case model.StageDomainKeyword:
		base = confidenceDomainKeyword
	case model.StageDomain:
		base = confidenceDomain
	case model.StageKeyword:
		base = confidenceKeyword
	default:
		return 0
	}

	if matchCount > 1 {
		base += confidenceExtraRule * float64(matchCount-1)
	}
	if len(recent) > 0 && recent[0] == categoryID {
		base += confidenceRepeatBonus
	}
	if base > 1 {
		base = 1
	}
	return base
}
