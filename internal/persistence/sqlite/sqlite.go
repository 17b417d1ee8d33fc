// Package sqlite persists the timer domain in SQLite and implements the
// ledger's stored-procedure contracts as single transactions.
package sqlite

import (
	"context"
	"fmt"
)

// schema is applied in order by Migrate. The statements are idempotent so a
// restart against an existing database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id TEXT PRIMARY KEY,
		platform_user_id TEXT NOT NULL UNIQUE,
		platform_account_id TEXT NOT NULL DEFAULT '',
		name TEXT,
		email TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
		is_draft INTEGER NOT NULL DEFAULT 0,
		task_name TEXT,
		comment TEXT,
		board_id TEXT,
		item_id TEXT,
		role TEXT,
		start_time TEXT,
		end_time TEXT,
		duration INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_user ON time_entries(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES user_profiles(id) ON DELETE CASCADE,
		draft_id TEXT REFERENCES time_entries(id) ON DELETE CASCADE,
		start_time TEXT NOT NULL,
		elapsed_time INTEGER NOT NULL DEFAULT 0,
		is_paused INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		start_time TEXT NOT NULL,
		end_time TEXT,
		duration INTEGER,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_session ON segments(session_id, start_time)`,
	// At most one open segment per session, enforced at the schema level so
	// concurrent opens cannot race past the application guard.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_segments_single_open
		ON segments(session_id) WHERE end_time IS NULL`,
}

// Migrate applies the schema.
func (p *Pool) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: schema statement %d failed: %w", i, err)
		}
	}
	return nil
}
