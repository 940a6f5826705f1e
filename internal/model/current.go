package model

import (
	"time"

	"chronolens/internal/extract"
)

// CurrentActivity is the single in-memory "what is the user doing right
// now" owned by the tracker. It is created when the sensor reports a
// change and replaced on the next change, idle transition, or pause.
type CurrentActivity struct {
	StartTime     time.Time
	Context       extract.Context
	AppName       string
	Title         string
	URL           string
	CategoryName  string
	CategoryColor string
	CategoryID    int
}

// SameObservation reports whether an observation matches this activity,
// meaning no transition occurred. App, title, and URL all participate; a
// title or URL change alone is still a new activity (but not a new
// session).
func (a *CurrentActivity) SameObservation(appName, title, url string) bool {
	return a.AppName == appName && a.Title == title && a.URL == url
}
