// Package approve implements the human-gated path that grows the symptom
// catalog at runtime.
//
// An approval takes one reviewed unknown mention, registers it (plus any
// extra aliases) in the catalog, journals the decision to SQLite, and
// resolves the mention's pending review entries. Subsequent extractions see
// the new mapping immediately. Approving an alias the catalog already knows
// returns the existing code instead of minting a duplicate, so approval is
// safe to repeat.
package approve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medscribe/symcat/internal/catalog"
	"github.com/medscribe/symcat/internal/store"
)

// Journal is the durable side of approvals: the persisted decision log and
// the review-queue resolution hook.
type Journal interface {
	AddApproval(ctx context.Context, a *store.Approval) (int64, error)
	ListApprovals(ctx context.Context) ([]*store.Approval, error)
	ResolveMention(ctx context.Context, mention string) (int64, error)
}

// Request is one human approval decision.
type Request struct {
	// Mention is the reviewed unknown mention being promoted. Required.
	Mention string
	// Name is the canonical display name; defaults to the mention.
	Name string
	// Category overrides keyword classification when set.
	Category string
	// Aliases are additional match strings to register with the entry.
	Aliases []string
}

// Gateway applies approval decisions to a catalog and its journal.
type Gateway struct {
	catalog *catalog.Catalog
	journal Journal
	logger  *zap.Logger
}

// NewGateway creates an approval gateway. journal may be nil, in which case
// approvals are session-scoped (in-memory only).
func NewGateway(cat *catalog.Catalog, journal Journal, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{catalog: cat, journal: journal, logger: logger}
}

// Approve registers one reviewed mention in the catalog and returns its
// code. If any alias of the request already resolves, the existing code is
// returned and nothing new is minted — repeat approvals are idempotent.
//
// Journal failures are logged and swallowed like ledger failures: losing
// durability degrades growth to session-scoped, it does not undo the
// decision the human just made.
func (g *Gateway) Approve(ctx context.Context, req Request) (string, error) {
	mention := catalog.NormalizeTerm(req.Mention)
	if mention == "" {
		return "", fmt.Errorf("approving mention: empty mention")
	}

	if sym, ok := g.catalog.Lookup(mention); ok {
		g.logger.Info("approval matched existing catalog entry",
			zap.String("mention", mention),
			zap.String("code", sym.Code),
		)
		g.resolveReviews(ctx, mention)
		return sym.Code, nil
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = mention
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = catalog.Categorize(name)
	}

	// The mention itself must resolve afterwards even when the canonical
	// name differs from it.
	aliases := make([]string, 0, len(req.Aliases)+1)
	aliases = append(aliases, mention)
	aliases = append(aliases, req.Aliases...)

	code := g.catalog.Add(name, category, aliases)
	g.logger.Info("unknown mention approved",
		zap.String("mention", mention),
		zap.String("code", code),
		zap.String("category", category),
	)

	if g.journal != nil {
		_, err := g.journal.AddApproval(ctx, &store.Approval{
			Code:     code,
			Mention:  mention,
			Name:     name,
			Category: category,
			Aliases:  req.Aliases,
		})
		if err != nil {
			g.logger.Warn("approval journal write failed; growth is session-scoped",
				zap.String("code", code),
				zap.Error(err),
			)
		}
	}

	g.resolveReviews(ctx, mention)
	return code, nil
}

// resolveReviews flips the mention's pending ledger rows; best effort.
func (g *Gateway) resolveReviews(ctx context.Context, mention string) {
	if g.journal == nil {
		return
	}
	n, err := g.journal.ResolveMention(ctx, mention)
	if err != nil {
		g.logger.Warn("resolving review entries failed",
			zap.String("mention", mention),
			zap.Error(err),
		)
		return
	}
	if n > 0 {
		g.logger.Info("review entries resolved",
			zap.String("mention", mention),
			zap.Int64("entries", n),
		)
	}
}

// Replay re-applies journaled approvals to a freshly loaded catalog, in
// journal order, skipping any mention the base vocabulary now covers.
// Returns the number of entries applied. Codes are re-minted against the
// current catalog; the journaled code is the historical record, not a
// reservation.
func (g *Gateway) Replay(ctx context.Context) (int, error) {
	if g.journal == nil {
		return 0, nil
	}

	approvals, err := g.journal.ListApprovals(ctx)
	if err != nil {
		return 0, fmt.Errorf("replaying approvals: %w", err)
	}

	applied := 0
	for _, a := range approvals {
		if _, ok := g.catalog.Lookup(a.Mention); ok {
			continue
		}
		aliases := append([]string{a.Mention}, a.Aliases...)
		g.catalog.Add(a.Name, a.Category, aliases)
		applied++
	}

	if applied > 0 {
		g.logger.Info("approval journal replayed",
			zap.Int("applied", applied),
			zap.Int("journaled", len(approvals)),
		)
	}
	return applied, nil
}
