package main

import (
	"context"
	"fmt"
	"time"

	"chronolens/internal/config"
	"chronolens/internal/service"
	"chronolens/internal/storage"

	"github.com/spf13/viper"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/chronolens/chronolens.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// viperSettings exposes the tracking section of the config file as the
// tracker's settings provider. Values are read from viper on demand, so
// a tracker reload after viper re-reads the file picks up changes.
type viperSettings struct{}

func (viperSettings) PollInterval() time.Duration {
	return viper.GetDuration("tracking.poll_interval")
}

func (viperSettings) IdleThreshold() time.Duration {
	return viper.GetDuration("tracking.idle_threshold")
}

func (viperSettings) MinActivityDuration() time.Duration {
	return viper.GetDuration("tracking.min_activity_duration")
}

func (viperSettings) ShortActivityThreshold() time.Duration {
	return viper.GetDuration("tracking.short_activity_threshold")
}

func (viperSettings) ExcludedApps() []string {
	return viper.GetStringSlice("tracking.excluded_apps")
}

// formatDuration renders a duration as a compact "2h 13m" style string
// for report output.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
