package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"hours and minutes", 2*time.Hour + 13*time.Minute, "2h 13m"},
		{"minutes and seconds", 5*time.Minute + 30*time.Second, "5m 30s"},
		{"seconds only", 45 * time.Second, "45s"},
		{"zero", 0, "0s"},
		{"rounds sub-second", 1499 * time.Millisecond, "1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.duration))
		})
	}
}

func TestParseRange(t *testing.T) {
	t.Run("explicit range is inclusive of the end date", func(t *testing.T) {
		start, end, err := parseRange("2026-03-02", "2026-03-04")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local), start)
		assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.Local), end)
	})

	t.Run("from without to covers a single day", func(t *testing.T) {
		start, end, err := parseRange("2026-03-02", "")
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, end.Sub(start))
	})

	t.Run("defaults to today", func(t *testing.T) {
		start, end, err := parseRange("", "")
		require.NoError(t, err)
		now := time.Now()
		assert.Equal(t, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), start)
		assert.Equal(t, 24*time.Hour, end.Sub(start))
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		_, _, err := parseRange("2026-03-04", "2026-03-02")
		assert.Error(t, err)
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		_, _, err := parseRange("03/02/2026", "")
		assert.Error(t, err)
	})
}
