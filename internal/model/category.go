// Package model defines the core data structures for the chronolens application.
package model

import "time"

// ProductivityType indicates how time in a category counts toward productivity.
type ProductivityType string

const (
	// ProductivityProductive represents focused, valuable work time.
	ProductivityProductive ProductivityType = "productive"
	// ProductivityNeutral represents time that is neither productive nor distracting.
	ProductivityNeutral ProductivityType = "neutral"
	// ProductivityDistraction represents time spent on distractions.
	ProductivityDistraction ProductivityType = "distraction"
)

// SentinelCategoryName is the name of the always-present fallback category.
// It is seeded by migrations, never rule-matched, and absorbs activities
// whose category is deleted.
const SentinelCategoryName = "Uncategorized"

// Category represents a classification bucket for observed activity.
type Category struct {
	CreatedAt    time.Time
	Name         string
	Color        string
	Productivity ProductivityType
	ID           int
	Priority     int
	IsPassive    bool
}

// IsSentinel reports whether this is the fallback category.
func (c *Category) IsSentinel() bool {
	return c.Name == SentinelCategoryName
}
