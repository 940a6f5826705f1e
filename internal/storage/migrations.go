package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"chronolens/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					color TEXT NOT NULL DEFAULT '#808080',
					priority INTEGER NOT NULL DEFAULT 0,
					is_passive INTEGER NOT NULL DEFAULT 0,
					productivity TEXT NOT NULL DEFAULT 'neutral',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS category_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category_id INTEGER NOT NULL,
					type TEXT NOT NULL,
					pattern TEXT NOT NULL,
					match_mode TEXT NOT NULL DEFAULT 'contains',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_rules_category ON category_rules(category_id)`,

				`CREATE TABLE IF NOT EXISTS sessions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					app_name TEXT NOT NULL,
					category_id INTEGER NOT NULL,
					start_time DATETIME NOT NULL,
					end_time DATETIME NOT NULL,
					total_duration_ms INTEGER NOT NULL DEFAULT 0,
					activity_count INTEGER NOT NULL DEFAULT 0,
					active INTEGER NOT NULL DEFAULT 1,
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_sessions_active ON sessions(active)`,
				`CREATE INDEX idx_sessions_start ON sessions(start_time)`,

				`CREATE TABLE IF NOT EXISTS activities (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id INTEGER NOT NULL,
					app_name TEXT NOT NULL,
					window_title TEXT,
					url TEXT,
					category_id INTEGER NOT NULL,
					project TEXT,
					filename TEXT,
					language TEXT,
					domain TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME NOT NULL,
					duration_ms INTEGER NOT NULL,
					FOREIGN KEY (session_id) REFERENCES sessions(id),
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_activities_session ON activities(session_id)`,
				`CREATE INDEX idx_activities_start ON activities(start_time)`,
				`CREATE INDEX idx_activities_category ON activities(category_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed the uncategorized sentinel category",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				INSERT INTO categories (name, color, priority, is_passive, productivity)
				SELECT ?, '#9E9E9E', 0, 0, 'neutral'
				WHERE NOT EXISTS (SELECT 1 FROM categories WHERE name = ?)`,
				model.SentinelCategoryName, model.SentinelCategoryName)
			if err != nil {
				return fmt.Errorf("failed to seed sentinel category: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index activities by day for reporting",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_activities_day
				ON activities(date(start_time), category_id)`)
			if err != nil {
				return fmt.Errorf("failed to create day index: %w", err)
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}
