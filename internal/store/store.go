// Package store provides the SQLite storage layer for symcat.
//
// One database file holds:
// - The review ledger: an append-only log of unknown symptom mentions
//   awaiting human triage, with bounded transcript context.
// - The approval journal: every human-approved symptom, replayed into the
//   in-memory catalog at startup so approvals survive restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.symcat/symcat.db"

// TimeLayout is the wall-clock format used on every ledger row. A single
// lexicographically sortable format keeps the ledger orderable by text.
const TimeLayout = "2006-01-02 15:04:05"

// Review entry statuses.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// ReviewEntry is one row of the append-only review ledger.
type ReviewEntry struct {
	ID           int64  `json:"id"`
	Timestamp    string `json:"timestamp"`
	ExtractionID string `json:"extraction_id"`
	Mention      string `json:"mention"`
	Excerpt      string `json:"excerpt"`
	Status       string `json:"status"`
}

// Approval is one journaled catalog approval.
type Approval struct {
	ID        int64
	Code      string
	Mention   string
	Name      string
	Category  string
	Aliases   []string
	CreatedAt time.Time
}

// StoreStats holds observability counters for the database.
type StoreStats struct {
	PendingReviews  int64
	ResolvedReviews int64
	Approvals       int64
	DBSizeBytes     int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store is the durable side of the pipeline: ledger appends, the review
// queue read path, and the approval journal.
type Store interface {
	// Review ledger
	RecordUnknown(ctx context.Context, extractionID, mention, excerpt string, at time.Time) error
	ListPending(ctx context.Context, limit int) ([]*ReviewEntry, error)
	Resolve(ctx context.Context, id int64) error
	ResolveMention(ctx context.Context, mention string) (int64, error)

	// Approval journal
	AddApproval(ctx context.Context, a *Approval) (int64, error)
	ListApprovals(ctx context.Context) ([]*Approval, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) a SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// GetDB exposes the underlying handle for resource queries.
func (s *SQLiteStore) GetDB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns current database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM review_entries WHERE status = 'pending'", &stats.PendingReviews},
		{"SELECT COUNT(*) FROM review_entries WHERE status = 'resolved'", &stats.ResolvedReviews},
		{"SELECT COUNT(*) FROM approvals", &stats.Approvals},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// DB size only applies to file-based databases.
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
