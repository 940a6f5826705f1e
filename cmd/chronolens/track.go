package main

import (
	"fmt"
	"log/slog"
	"time"

	"chronolens/internal/categorize"
	"chronolens/internal/model"
	"chronolens/internal/sensor"
	"chronolens/internal/tracker"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultRulesRefresh = 5 * time.Minute

// normalizeRulesRefresh guards the ticker against a zero or negative
// interval, which would panic time.NewTicker.
func normalizeRulesRefresh(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultRulesRefresh
	}
	return d
}

func trackCmd() *cobra.Command {
	var rulesRefresh time.Duration

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run the activity tracker",
		Long: `Start the passive tracking loop. The tracker polls the focused window,
categorizes it against your rules, and records finished activities to
the database. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := categorize.New(ctx, store)
			if err != nil {
				return fmt.Errorf("failed to build categorization engine: %w", err)
			}

			probe := sensor.NewX11Sensor(2 * time.Second)

			tr := tracker.New(probe, engine, store, viperSettings{})
			tr.OnActivityChange(func(current *model.CurrentActivity) {
				if current == nil {
					slog.Debug("activity cleared")
					return
				}
				slog.Info("activity changed",
					"app", current.AppName,
					"title", current.Title,
					"category", current.CategoryName)
			})

			// Re-read settings when the config file changes on disk.
			viper.OnConfigChange(func(_ fsnotify.Event) {
				slog.Info("config file changed, reloading settings")
				tr.ReloadSettings()
			})
			viper.WatchConfig()

			// Rules are edited by separate CLI invocations, so refresh the
			// engine snapshot on a timer.
			go func() {
				ticker := time.NewTicker(normalizeRulesRefresh(rulesRefresh))
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := engine.Reload(ctx); err != nil {
							slog.Warn("rule reload failed", "error", err)
						}
					}
				}
			}()

			if err := tr.Start(ctx); err != nil {
				return fmt.Errorf("failed to start tracker: %w", err)
			}
			slog.Info("tracking started", "poll_interval", viperSettings{}.PollInterval())

			<-ctx.Done()
			tr.Stop()
			slog.Info("tracking stopped")

			return nil
		},
	}

	cmd.Flags().DurationVar(&rulesRefresh, "rules-refresh", defaultRulesRefresh, "How often to re-read categorization rules from the database")

	return cmd
}
