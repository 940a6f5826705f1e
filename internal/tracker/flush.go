package tracker

import (
	"context"
	"log/slog"
	"time"

	"chronolens/internal/common"
	"chronolens/internal/model"
	"chronolens/internal/service"
)

// flushLocked persists the current activity (if any) ending at now, and
// optionally closes the session. Callers hold t.mu.
//
// Persistence failures are logged and the span is lost; spans are
// re-derivable going forward, not retroactively, so losing one tick's
// observation is the worst acceptable outcome.
func (t *Tracker) flushLocked(ctx context.Context, now time.Time, closeSession bool) {
	cur := t.current
	t.current = nil

	if cur != nil {
		if err := t.persistSpan(ctx, cur, now); err != nil {
			common.LogError(err, "failed to persist activity span", common.Fields{
				"app":   cur.AppName,
				"start": cur.StartTime,
			})
		}
	}

	if closeSession {
		if err := t.store.CloseCurrentSession(ctx); err != nil {
			common.LogError(err, "failed to close session", nil)
		}
		t.sessionID = 0
	}
}

// persistSpan turns one finished current-activity span into zero or more
// activity records: sub-second spans are discarded, short spans are
// absorbed into their predecessor when one exists, and spans crossing
// local midnight are split at each boundary so no record spans two dates.
func (t *Tracker) persistSpan(ctx context.Context, cur *model.CurrentActivity, end time.Time) error {
	if end.Sub(cur.StartTime) < t.minDuration {
		return nil
	}

	for _, seg := range splitAtMidnights(cur.StartTime, end) {
		dur := seg.end.Sub(seg.start)
		if dur < t.minDuration {
			continue
		}

		// The session is opened lazily on the first segment that will
		// actually be written, so a span whose every segment is discarded
		// leaves no empty session row behind.
		sessionID, err := t.ensureSession(ctx, cur)
		if err != nil {
			return err
		}

		if dur < t.shortThreshold {
			// Rapid app-switching noise: stretch the previous record in
			// this session instead of writing a new row.
			absorbed, extErr := t.store.ExtendLastActivity(ctx, sessionID, seg.end, dur)
			if extErr != nil {
				return extErr
			}
			if absorbed {
				continue
			}
		}

		record := t.buildRecord(cur, sessionID, seg.start, seg.end)
		insert := func() error {
			_, insErr := t.store.InsertActivity(ctx, record)
			return insErr
		}
		if err := common.WithRetry(ctx, insert, service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 50 * time.Millisecond,
		}); err != nil {
			return err
		}

		slog.Debug("persisted activity",
			"app", record.AppName,
			"category_id", record.CategoryID,
			"duration", record.Duration)
	}

	return nil
}

func (t *Tracker) ensureSession(ctx context.Context, cur *model.CurrentActivity) (int64, error) {
	if t.sessionID != 0 {
		return t.sessionID, nil
	}
	id, err := t.store.GetOrCreateSession(ctx, cur.AppName, cur.CategoryID, cur.StartTime)
	if err != nil {
		return 0, err
	}
	t.sessionID = id
	return id, nil
}

func (t *Tracker) buildRecord(cur *model.CurrentActivity, sessionID int64, start, end time.Time) *model.ActivityRecord {
	record := &model.ActivityRecord{
		StartTime:   start,
		EndTime:     end,
		AppName:     cur.AppName,
		WindowTitle: cur.Title,
		URL:         cur.URL,
		Project:     cur.Context.Project,
		Filename:    cur.Context.Filename,
		Language:    cur.Context.Language,
		Duration:    end.Sub(start),
		SessionID:   sessionID,
		CategoryID:  cur.CategoryID,
	}
	if cur.Context.Browser != nil {
		record.Domain = cur.Context.Browser.Domain
	}
	return record
}

type span struct {
	start time.Time
	end   time.Time
}

// splitAtMidnights splits [start, end) at each local midnight boundary,
// using start's location for the wall-clock date.
func splitAtMidnights(start, end time.Time) []span {
	loc := start.Location()
	var spans []span

	for {
		y, m, d := start.In(loc).Date()
		midnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		if !midnight.Before(end) {
			break
		}
		spans = append(spans, span{start: start, end: midnight})
		start = midnight
	}

	return append(spans, span{start: start, end: end})
}
