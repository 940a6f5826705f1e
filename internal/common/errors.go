// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
)

// Common application errors.
var (
	// Sensor errors.
	ErrSensorUnsupported = errors.New("focus sensor not supported on this platform")

	// Tracker errors.
	ErrAlreadyRunning = errors.New("tracker already running")
	ErrNotRunning     = errors.New("tracker not running")
)
