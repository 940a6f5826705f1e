package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"chronolens/internal/cli"
	"chronolens/internal/service"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		fromStr      string
		toStr        string
		showSessions bool
		byDay        bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show time totals per category",
		Long: `Aggregate recorded activity into time per category over a date range.
Dates are local and inclusive; with no flags the report covers today.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			start, end, err := parseRange(fromStr, toStr)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if byDay {
				return printByDay(cmd, store, start, end)
			}

			totals, err := store.CategoryTotals(ctx, start, end)
			if err != nil {
				return fmt.Errorf("failed to compute totals: %w", err)
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Activity %s to %s",
				start.Format("2006-01-02"), end.Add(-time.Nanosecond).Format("2006-01-02"))))

			if len(totals) == 0 {
				fmt.Println(cli.InfoStyle.Render("No recorded activity in this range."))
				return nil
			}

			var grand time.Duration
			for i := range totals {
				grand += totals[i].TotalDuration
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("Category"),
				cli.HeaderStyle.Render("Productivity"),
				cli.HeaderStyle.Render("Time"),
				cli.HeaderStyle.Render("Share"),
				cli.HeaderStyle.Render("Activities"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 20),
				strings.Repeat("-", 12),
				strings.Repeat("-", 8),
				strings.Repeat("-", 6),
				strings.Repeat("-", 10))

			for i := range totals {
				t := &totals[i]
				share := 0.0
				if grand > 0 {
					share = float64(t.TotalDuration) / float64(grand) * 100
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%d\n",
					t.CategoryName, t.Productivity, formatDuration(t.TotalDuration), share, t.ActivityCount)
			}
			w.Flush()

			fmt.Println()
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Total tracked: %s", formatDuration(grand))))

			if showSessions {
				if err := printSessions(cmd, store, start, end); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&toStr, "to", "", "End date inclusive (YYYY-MM-DD, default same as --from)")
	cmd.Flags().BoolVar(&showSessions, "sessions", false, "Also list individual sessions")
	cmd.Flags().BoolVar(&byDay, "by-day", false, "Break totals down per calendar day")

	return cmd
}

// printByDay renders one totals block per local calendar day. Records
// never span midnight, so per-day windows partition the range cleanly.
func printByDay(cmd *cobra.Command, store service.ActivityStore, start, end time.Time) error {
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		if next.After(end) {
			next = end
		}

		totals, err := store.CategoryTotals(cmd.Context(), day, next)
		if err != nil {
			return fmt.Errorf("failed to compute totals for %s: %w", day.Format("2006-01-02"), err)
		}
		if len(totals) == 0 {
			continue
		}

		fmt.Println(cli.TitleStyle.Render(day.Format("Monday, Jan 2 2006")))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		var dayTotal time.Duration
		for i := range totals {
			t := &totals[i]
			dayTotal += t.TotalDuration
			fmt.Fprintf(w, "%s\t%s\t%d\n",
				t.CategoryName, formatDuration(t.TotalDuration), t.ActivityCount)
		}
		w.Flush()
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("  %s tracked", formatDuration(dayTotal))))
		fmt.Println()
	}

	return nil
}

// parseRange turns the from/to flags into a half-open [start, end) range
// of local time.
func parseRange(fromStr, toStr string) (start, end time.Time, err error) {
	now := time.Now()
	start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	if fromStr != "" {
		start, err = time.ParseInLocation("2006-01-02", fromStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date: %w", err)
		}
	}

	end = start.AddDate(0, 0, 1)
	if toStr != "" {
		to, parseErr := time.ParseInLocation("2006-01-02", toStr, time.Local)
		if parseErr != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date: %w", parseErr)
		}
		end = to.AddDate(0, 0, 1)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must not be before --from")
	}

	return start, end, nil
}

func printSessions(cmd *cobra.Command, store service.ActivityStore, start, end time.Time) error {
	sessions, err := store.SessionsByRange(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println(cli.TitleStyle.Render("Sessions"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("App"),
		cli.HeaderStyle.Render("Start"),
		cli.HeaderStyle.Render("End"),
		cli.HeaderStyle.Render("Time"),
		cli.HeaderStyle.Render("Activities"))

	for i := range sessions {
		s := &sessions[i]
		endStr := s.EndTime.Local().Format("15:04")
		if s.Active {
			endStr = cli.SubtleStyle.Render("(open)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			s.AppName,
			s.StartTime.Local().Format("Jan 2 15:04"),
			endStr,
			formatDuration(s.TotalDuration),
			s.ActivityCount)
	}

	return nil
}
