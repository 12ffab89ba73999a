package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AddApproval journals one human-approved symptom.
func (s *SQLiteStore) AddApproval(ctx context.Context, a *Approval) (int64, error) {
	if a.Mention == "" {
		return 0, fmt.Errorf("journaling approval: empty mention")
	}

	aliases, err := json.Marshal(a.Aliases)
	if err != nil {
		return 0, fmt.Errorf("journaling approval: encoding aliases: %w", err)
	}

	now := a.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (code, mention, name, category, aliases, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Code, a.Mention, a.Name, a.Category, string(aliases), now.UTC().Format(TimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("journaling approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journaling approval: getting id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return id, nil
}

// ListApprovals returns every journaled approval in journal order, for
// replaying into a freshly loaded catalog at startup.
func (s *SQLiteStore) ListApprovals(ctx context.Context) ([]*Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, mention, name, category, aliases, created_at
		 FROM approvals
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*Approval
	for rows.Next() {
		a := &Approval{}
		var aliases, createdAt string
		if err := rows.Scan(&a.ID, &a.Code, &a.Mention, &a.Name, &a.Category, &aliases, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning approval: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &a.Aliases); err != nil {
			return nil, fmt.Errorf("decoding approval aliases: %w", err)
		}
		if t, err := time.Parse(TimeLayout, createdAt); err == nil {
			a.CreatedAt = t
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
