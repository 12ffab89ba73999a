package store

import "fmt"

// migrate creates all tables if they don't exist. Every statement is
// idempotent, so reopening an existing database is a no-op.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS review_entries (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at    TEXT NOT NULL,
			extraction_id TEXT NOT NULL DEFAULT '',
			mention       TEXT NOT NULL,
			excerpt       TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_entries_status
			ON review_entries(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_review_entries_mention
			ON review_entries(mention)`,

		`CREATE TABLE IF NOT EXISTS approvals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			code       TEXT NOT NULL,
			mention    TEXT NOT NULL,
			name       TEXT NOT NULL,
			category   TEXT NOT NULL DEFAULT 'general',
			aliases    TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_mention
			ON approvals(mention)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration DDL: %w", err)
		}
	}

	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1')`,
	); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	return nil
}
