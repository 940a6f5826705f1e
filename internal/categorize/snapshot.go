package categorize

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"chronolens/internal/model"
)

// snapshot is an immutable, pre-compiled view of the rule store. It is
// built once per reload and never mutated afterward.
type snapshot struct {
	byID       map[int]*model.Category
	rulesByCat map[int]*ruleSet
	sentinel   *model.Category
	categories []*model.Category
}

// ruleSet groups one category's compiled rules by cascade stage.
// File-path rules ride along with the app stage so a path rule can
// capture editor and terminal work at the highest precedence tier.
type ruleSet struct {
	app           []compiledRule
	filePath      []compiledRule
	domainKeyword []compiledRule
	domain        []compiledRule
	keyword       []compiledRule
}

// compiledRule is a rule with its regex compiled ahead of time. A pattern
// that fails to compile is demoted to contains mode rather than rejected;
// invalid rules must never crash classification.
type compiledRule struct {
	re             *regexp.Regexp
	rule           model.CategoryRule
	compoundDomain string
	compoundWord   string
	match          model.MatchMode
}

func buildSnapshot(categories []model.Category, rules []model.CategoryRule) *snapshot {
	snap := &snapshot{
		byID:       make(map[int]*model.Category, len(categories)),
		rulesByCat: make(map[int]*ruleSet, len(categories)),
	}

	sorted := make([]model.Category, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for i := range sorted {
		cat := &sorted[i]
		snap.byID[cat.ID] = cat
		if cat.IsSentinel() {
			snap.sentinel = cat
			continue
		}
		snap.categories = append(snap.categories, cat)
		snap.rulesByCat[cat.ID] = &ruleSet{}
	}

	for _, rule := range rules {
		rs, ok := snap.rulesByCat[rule.CategoryID]
		if !ok {
			// Rule owned by the sentinel or an unknown category; the
			// sentinel is never rule-matched.
			continue
		}

		cr := compileRule(rule)
		switch rule.Type {
		case model.RuleTypeApp:
			rs.app = append(rs.app, cr)
		case model.RuleTypeFilePath:
			rs.filePath = append(rs.filePath, cr)
		case model.RuleTypeDomainKeyword:
			rs.domainKeyword = append(rs.domainKeyword, cr)
		case model.RuleTypeDomain:
			rs.domain = append(rs.domain, cr)
		case model.RuleTypeKeyword:
			rs.keyword = append(rs.keyword, cr)
		}
	}

	return snap
}

func compileRule(rule model.CategoryRule) compiledRule {
	cr := compiledRule{rule: rule, match: rule.Match}

	if rule.Type == model.RuleTypeDomainKeyword {
		if domain, word, ok := rule.CompoundPattern(); ok {
			cr.compoundDomain = strings.ToLower(strings.TrimSpace(domain))
			cr.compoundWord = strings.ToLower(strings.TrimSpace(word))
		}
	}

	if rule.Match == model.MatchRegex {
		pattern := rule.Pattern
		if rule.Type == model.RuleTypeDomainKeyword {
			pattern = cr.compoundWord
		}
		// Every stage matches case-insensitively, and the subjects are
		// pre-lowercased, so the pattern itself must not be allowed to
		// demand uppercase.
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			slog.Warn("invalid regex pattern, demoting rule to contains",
				"rule_id", rule.ID,
				"pattern", pattern,
				"error", err)
			cr.match = model.MatchContains
		} else {
			cr.re = re
		}
	}

	return cr
}

// stageInput carries the pre-normalized observation fields each stage
// matches against.
type stageInput struct {
	appName  string
	filePath string
	hostname string
	haystack string
}

// stageMatches returns every rule of the category that matches at the
// given stage. The full list feeds the explainability trace.
func (s *snapshot) stageMatches(stage model.CascadeStage, categoryID int, in stageInput) []model.RuleMatch {
	rs, ok := s.rulesByCat[categoryID]
	if !ok {
		return nil
	}

	var matches []model.RuleMatch
	record := func(cr compiledRule) {
		matches = append(matches, model.RuleMatch{
			Stage:    stage,
			Pattern:  cr.rule.Pattern,
			RuleID:   cr.rule.ID,
			RuleType: cr.rule.Type,
		})
	}

	switch stage {
	case model.StageApp:
		for _, cr := range rs.app {
			if matchText(cr, in.appName) {
				record(cr)
			}
		}
		if in.filePath != "" {
			for _, cr := range rs.filePath {
				if matchText(cr, strings.ToLower(in.filePath)) {
					record(cr)
				}
			}
		}
	case model.StageDomainKeyword:
		if in.hostname == "" {
			return nil
		}
		for _, cr := range rs.domainKeyword {
			if !matchDomain(in.hostname, cr.compoundDomain) {
				continue
			}
			if matchCompoundWord(cr, in.haystack) {
				record(cr)
			}
		}
	case model.StageDomain:
		if in.hostname == "" {
			return nil
		}
		for _, cr := range rs.domain {
			if cr.match == model.MatchRegex && cr.re != nil {
				if cr.re.MatchString(in.hostname) {
					record(cr)
				}
			} else if matchDomain(in.hostname, strings.ToLower(cr.rule.Pattern)) {
				record(cr)
			}
		}
	case model.StageKeyword:
		for _, cr := range rs.keyword {
			if matchText(cr, in.haystack) {
				record(cr)
			}
		}
	}

	return matches
}

// matchText applies a rule's match mode to an already-lowercased subject.
func matchText(cr compiledRule, subject string) bool {
	switch cr.match {
	case model.MatchExact:
		return strings.ToLower(cr.rule.Pattern) == subject
	case model.MatchContains:
		return strings.Contains(subject, strings.ToLower(cr.rule.Pattern))
	case model.MatchRegex:
		return cr.re != nil && cr.re.MatchString(subject)
	}
	return false
}

// matchDomain implements the subdomain-aware domain semantics:
// the hostname equals the pattern or ends with "." + pattern.
func matchDomain(hostname, pattern string) bool {
	if pattern == "" {
		return false
	}
	return hostname == pattern || strings.HasSuffix(hostname, "."+pattern)
}

func matchCompoundWord(cr compiledRule, haystack string) bool {
	if cr.match == model.MatchRegex && cr.re != nil {
		return cr.re.MatchString(haystack)
	}
	return cr.compoundWord != "" && strings.Contains(haystack, cr.compoundWord)
}
