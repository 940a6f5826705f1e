package model

import "time"

// MaxRecentCategories bounds the category history carried on an ActivityInput.
const MaxRecentCategories = 5

// ActivityInput is the per-tick observation handed to the categorization
// engine. It is ephemeral and never persisted.
type ActivityInput struct {
	AppName           string
	Title             string
	URL               string
	FilePath          string
	RecentCategoryIDs []int
}

// CascadeStage names the precedence tier that produced a match.
type CascadeStage string

// Cascade stage constants, in precedence order.
const (
	StageApp           CascadeStage = "app"
	StageDomainKeyword CascadeStage = "domain_keyword"
	StageDomain        CascadeStage = "domain"
	StageKeyword       CascadeStage = "keyword"
	StageNone          CascadeStage = "none"
)

// RuleMatch describes one rule that matched during categorization.
// It exists purely for explainability.
type RuleMatch struct {
	Stage    CascadeStage
	Pattern  string
	RuleID   int
	RuleType RuleType
}

// CategorizationResult is the outcome of classifying one ActivityInput.
// Confidence and MatchedRules never alter the winning category; they are
// surfaced so a UI can explain why an activity was classified.
type CategorizationResult struct {
	MatchedRules []RuleMatch
	Confidence   float64
	CategoryID   int
}

// Session groups consecutive activity records for the same application.
// It is closed on application change, idle transition, or pause, never
// on a mere title or URL change.
type Session struct {
	StartTime     time.Time
	EndTime       time.Time
	AppName       string
	TotalDuration time.Duration
	ID            int64
	CategoryID    int
	ActivityCount int
	Active        bool
}

// ActivityRecord is one finished, time-bounded, categorized observation.
// Invariants: EndTime > StartTime, Duration = EndTime - StartTime, and a
// record shorter than the minimum duration is never written unless it was
// absorbed into a neighbor.
type ActivityRecord struct {
	StartTime   time.Time
	EndTime     time.Time
	AppName     string
	WindowTitle string
	URL         string
	Project     string
	Filename    string
	Language    string
	Domain      string
	Duration    time.Duration
	ID          int64
	SessionID   int64
	CategoryID  int
}
