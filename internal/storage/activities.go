package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chronolens/internal/model"
	"chronolens/internal/service"
)

// GetOrCreateSession returns the open session for the application,
// creating one when none is open. An open session for a different
// application is closed first; sessions for distinct applications never
// overlap.
func (s *SQLiteStorage) GetOrCreateSession(ctx context.Context, appName string, categoryID int, startTime time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(appName, "appName"); err != nil {
		return 0, err
	}

	var id int64
	var currentApp string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, app_name FROM sessions WHERE active = 1 ORDER BY id DESC LIMIT 1`).Scan(&id, &currentApp)
	switch {
	case err == nil && currentApp == appName:
		return id, nil
	case err == nil:
		if err := s.CloseCurrentSession(ctx); err != nil {
			return 0, err
		}
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("failed to query open session: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (app_name, category_id, start_time, end_time, total_duration_ms, activity_count, active)
		VALUES (?, ?, ?, ?, 0, 0, 1)`,
		appName, categoryID, startTime, startTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session id: %w", err)
	}

	slog.Debug("opened session", "id", id, "app", appName)
	return id, nil
}

// CloseCurrentSession marks the open session (if any) as closed. Closing
// when nothing is open is a no-op.
func (s *SQLiteStorage) CloseCurrentSession(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE active = 1`)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		slog.Debug("closed session")
	}
	return nil
}

// InsertActivity persists one finished activity record and extends its
// session's bookkeeping.
func (s *SQLiteStorage) InsertActivity(ctx context.Context, record *model.ActivityRecord) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateRecord(record); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO activities (session_id, app_name, window_title, url, category_id,
			project, filename, language, domain, start_time, end_time, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SessionID, record.AppName, record.WindowTitle, record.URL, record.CategoryID,
		record.Project, record.Filename, record.Language, record.Domain,
		record.StartTime, record.EndTime, record.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to insert activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get activity id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET end_time = ?, total_duration_ms = total_duration_ms + ?, activity_count = activity_count + 1
		WHERE id = ?`,
		record.EndTime, record.Duration.Milliseconds(), record.SessionID); err != nil {
		return 0, fmt.Errorf("failed to extend session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit activity: %w", err)
	}

	return id, nil
}

// ExtendLastActivity stretches the most recent record in the session to
// the new end time instead of inserting a new row. It returns false when
// the session has no eligible record to extend: none exists, or the
// stretch would push the record past the local midnight following its
// start. Records never span two calendar dates.
func (s *SQLiteStorage) ExtendLastActivity(ctx context.Context, sessionID int64, endTime time.Time, extra time.Duration) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	last, err := s.GetLastActivity(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}

	lastStart := last.StartTime.Local()
	boundary := time.Date(lastStart.Year(), lastStart.Month(), lastStart.Day()+1, 0, 0, 0, 0, time.Local)
	if endTime.After(boundary) {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE activities SET end_time = ?, duration_ms = duration_ms + ? WHERE id = ?`,
		endTime, extra.Milliseconds(), last.ID); err != nil {
		return false, fmt.Errorf("failed to extend activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET end_time = ?, total_duration_ms = total_duration_ms + ? WHERE id = ?`,
		endTime, extra.Milliseconds(), sessionID); err != nil {
		return false, fmt.Errorf("failed to extend session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit extension: %w", err)
	}

	slog.Debug("absorbed short activity into predecessor",
		"activity_id", last.ID,
		"session_id", sessionID,
		"extra", extra)
	return true, nil
}

const activityColumns = `id, session_id, app_name, window_title, url, category_id,
	project, filename, language, domain, start_time, end_time, duration_ms`

// GetLastActivity returns the most recent activity in a session, or nil
// when the session has none.
func (s *SQLiteStorage) GetLastActivity(ctx context.Context, sessionID int64) (*model.ActivityRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE session_id = ?
		ORDER BY end_time DESC, id DESC
		LIMIT 1`, sessionID)

	record, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last activity: %w", err)
	}
	return record, nil
}

func scanActivity(row interface{ Scan(...any) error }) (*model.ActivityRecord, error) {
	var record model.ActivityRecord
	var durationMs int64
	if err := row.Scan(&record.ID, &record.SessionID, &record.AppName, &record.WindowTitle,
		&record.URL, &record.CategoryID, &record.Project, &record.Filename,
		&record.Language, &record.Domain, &record.StartTime, &record.EndTime, &durationMs); err != nil {
		return nil, err
	}
	record.Duration = time.Duration(durationMs) * time.Millisecond
	return &record, nil
}

// CategoryTotals aggregates tracked time per category over a time range.
// Consumed only by reporting.
func (s *SQLiteStorage) CategoryTotals(ctx context.Context, start, end time.Time) ([]service.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.color, c.productivity,
			COALESCE(SUM(a.duration_ms), 0), COUNT(a.id)
		FROM activities a
		JOIN categories c ON c.id = a.category_id
		WHERE a.start_time >= ? AND a.start_time < ?
		GROUP BY c.id, c.name, c.color, c.productivity
		ORDER BY SUM(a.duration_ms) DESC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	var totals []service.CategoryTotal
	for rows.Next() {
		var t service.CategoryTotal
		var durationMs int64
		if err := rows.Scan(&t.CategoryID, &t.CategoryName, &t.CategoryColor, &t.Productivity, &durationMs, &t.ActivityCount); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		t.TotalDuration = time.Duration(durationMs) * time.Millisecond
		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}
	return totals, nil
}

// SessionsByRange returns sessions whose start falls in [start, end).
func (s *SQLiteStorage) SessionsByRange(ctx context.Context, start, end time.Time) ([]model.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_name, category_id, start_time, end_time, total_duration_ms, activity_count, active
		FROM sessions
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var durationMs int64
		var active int
		if err := rows.Scan(&sess.ID, &sess.AppName, &sess.CategoryID, &sess.StartTime,
			&sess.EndTime, &durationMs, &sess.ActivityCount, &active); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.TotalDuration = time.Duration(durationMs) * time.Millisecond
		sess.Active = active != 0
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}
