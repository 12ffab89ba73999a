// Package observe provides catalog observability for symcat.
//
// It answers the question: "What does my catalog actually cover?" —
// vocabulary size, category composition, and how the review ledger is
// trending (pending unknowns versus resolved ones).
package observe

import (
	"context"
	"fmt"
	"os"

	"github.com/medscribe/symcat/internal/catalog"
	"github.com/medscribe/symcat/internal/store"
)

// Stats holds aggregate catalog and ledger statistics.
type Stats struct {
	Symptoms        int            `json:"symptoms"`
	Aliases         int            `json:"aliases"`
	Categories      map[string]int `json:"categories"`
	PendingReviews  int64          `json:"pending_reviews"`
	ResolvedReviews int64          `json:"resolved_reviews"`
	Approvals       int64          `json:"approvals"`
	StorageBytes    int64          `json:"storage_bytes"`
}

// Engine combines the in-memory catalog with the durable store to
// produce a single stats view.
type Engine struct {
	catalog *catalog.Catalog
	store   store.Store
	dbPath  string
}

// NewEngine creates a new observability engine. store may be nil when
// running without persistence; ledger counts are then zero.
func NewEngine(c *catalog.Catalog, s store.Store, dbPath string) *Engine {
	return &Engine{
		catalog: c,
		store:   s,
		dbPath:  dbPath,
	}
}

// GetStats returns combined catalog and review-ledger statistics.
func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Symptoms:   e.catalog.Len(),
		Aliases:    e.catalog.AliasCount(),
		Categories: e.catalog.CategoryCounts(),
	}

	if e.store != nil {
		storeStats, err := e.store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting store stats: %w", err)
		}
		stats.PendingReviews = storeStats.PendingReviews
		stats.ResolvedReviews = storeStats.ResolvedReviews
		stats.Approvals = storeStats.Approvals
		stats.StorageBytes = storeStats.DBSizeBytes
	}

	// Fall back to the file size when the store doesn't report one.
	if stats.StorageBytes == 0 && e.dbPath != "" && e.dbPath != ":memory:" {
		if info, err := os.Stat(e.dbPath); err == nil {
			stats.StorageBytes = info.Size()
		}
	}

	return stats, nil
}
