// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"chronolens/internal/model"
)

// Observation is a single focused-window reading from the sensor.
type Observation struct {
	AppName string
	Title   string
	URL     string
}

// Sensor is the platform focus probe. Poll returning (nil, nil) means no
// observation was available this tick, which is not an error.
type Sensor interface {
	Poll(ctx context.Context) (*Observation, error)
	IdleSeconds(ctx context.Context) (float64, error)
	Supported() bool
}

// Settings supplies the tracker's tunable parameters. Implementations are
// re-read only on explicit reload, never per tick.
type Settings interface {
	PollInterval() time.Duration
	IdleThreshold() time.Duration
	MinActivityDuration() time.Duration
	ShortActivityThreshold() time.Duration
	ExcludedApps() []string
}

// ActivityListener receives the current activity on every detected
// transition, or nil when tracking flushes to nothing (idle, pause,
// excluded application). This is the sole notification surface consumed
// by any surrounding UI.
type ActivityListener func(current *model.CurrentActivity)

// RuleStore is the persistence contract for categories and their rules.
type RuleStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id int) error

	GetRules(ctx context.Context) ([]model.CategoryRule, error)
	GetRulesByCategory(ctx context.Context, categoryID int) ([]model.CategoryRule, error)
	CreateRule(ctx context.Context, rule *model.CategoryRule) (*model.CategoryRule, error)
	UpdateRule(ctx context.Context, rule *model.CategoryRule) error
	DeleteRule(ctx context.Context, id int) error
}

// ActivityStore is the persistence contract for finished activity records
// and their sessions. The tracker is its sole writer.
type ActivityStore interface {
	InsertActivity(ctx context.Context, record *model.ActivityRecord) (int64, error)
	// ExtendLastActivity stretches the most recent record in the session to
	// the new end time. It returns false when the session has no eligible
	// predecessor, including a predecessor the stretch would push across
	// a local midnight boundary.
	ExtendLastActivity(ctx context.Context, sessionID int64, endTime time.Time, extra time.Duration) (bool, error)
	GetLastActivity(ctx context.Context, sessionID int64) (*model.ActivityRecord, error)

	GetOrCreateSession(ctx context.Context, appName string, categoryID int, startTime time.Time) (int64, error)
	CloseCurrentSession(ctx context.Context) error

	// Aggregate queries, consumed only by reporting.
	CategoryTotals(ctx context.Context, start, end time.Time) ([]CategoryTotal, error)
	SessionsByRange(ctx context.Context, start, end time.Time) ([]model.Session, error)
}

// Storage is the full persistence contract implemented by the SQLite layer.
type Storage interface {
	RuleStore
	ActivityStore

	Migrate(ctx context.Context) error
	Close() error
}

// CategoryTotal is an aggregate row for reporting.
type CategoryTotal struct {
	CategoryName  string
	CategoryColor string
	Productivity  model.ProductivityType
	TotalDuration time.Duration
	CategoryID    int
	ActivityCount int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
