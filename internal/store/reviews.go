package store

import (
	"context"
	"fmt"
	"time"
)

// RecordUnknown appends one unknown mention to the review ledger. One row is
// written per mention per extraction; duplicates across extractions are
// expected and never collapsed here.
func (s *SQLiteStore) RecordUnknown(ctx context.Context, extractionID, mention, excerpt string, at time.Time) error {
	if mention == "" {
		return fmt.Errorf("recording unknown mention: empty mention")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_entries (created_at, extraction_id, mention, excerpt, status)
		 VALUES (?, ?, ?, ?, ?)`,
		at.UTC().Format(TimeLayout), extractionID, mention, excerpt, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("recording unknown mention: %w", err)
	}
	return nil
}

// ListPending returns review entries still awaiting a human decision,
// oldest first.
func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]*ReviewEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, extraction_id, mention, excerpt, status
		 FROM review_entries
		 WHERE status = ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		StatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending reviews: %w", err)
	}
	defer rows.Close()

	var entries []*ReviewEntry
	for rows.Next() {
		e := &ReviewEntry{}
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ExtractionID, &e.Mention, &e.Excerpt, &e.Status); err != nil {
			return nil, fmt.Errorf("scanning review entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Resolve marks a single review entry as handled.
func (s *SQLiteStore) Resolve(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE review_entries SET status = ? WHERE id = ? AND status = ?`,
		StatusResolved, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("resolving review entry %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolving review entry %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("resolving review entry %d: no pending entry with that id", id)
	}
	return nil
}

// ResolveMention marks every pending entry for a mention as handled and
// returns the number of rows flipped. Used after an approval so the queue
// doesn't keep re-surfacing a mention the human already decided on.
func (s *SQLiteStore) ResolveMention(ctx context.Context, mention string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE review_entries SET status = ? WHERE mention = ? AND status = ?`,
		StatusResolved, mention, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("resolving mention %q: %w", mention, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolving mention %q: %w", mention, err)
	}
	return n, nil
}
