// Package extract implements the symptom extraction and normalization
// pipeline for symcat.
//
// The pipeline turns a free-text consultation transcript into structured
// findings without an LLM or external API:
//   - Exhaustive alias scan: every catalog alias is checked against the
//     transcript, so no vocabulary term present verbatim is ever missed.
//   - Pattern-based context extraction: regex templates anchored on clinical
//     reporting idioms ("experiencing X", "pain in X") capture short spans,
//     which are promoted to their catalog alias form when they overlap one.
//
// Candidates that resolve in the catalog become matched symptom records;
// everything else is an unknown mention, appended to the review ledger for
// human triage. Only catalog-backed terms ever appear as positive findings.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medscribe/symcat/internal/catalog"
)

const (
	// MaxTranscriptBytes caps transcript length; no caller enforces a
	// limit on the transcript interface.
	MaxTranscriptBytes = 64 << 10

	// MinCandidateLength filters sub-3-character candidates as noise.
	MinCandidateLength = 3

	// ExcerptLimit bounds the transcript context stored on a ledger row.
	ExcerptLimit = 200
)

// MatchedSymptom is one catalog-validated finding.
type MatchedSymptom struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	MatchedText string `json:"matched_text"`
	Category    string `json:"category"`
}

// Result is the per-invocation outcome of the pipeline. It is constructed
// fresh on every Process call and owned by the caller.
type Result struct {
	ExtractionID    string           `json:"extraction_id"`
	SymptomsPresent []MatchedSymptom `json:"symptoms_present"`
	UnknownMentions []string         `json:"unknown_mentions"`
	SymptomCount    int              `json:"symptom_count"`
	UnknownCount    int              `json:"unknown_count"`

	// Transcript is the (truncated) text the result was produced from.
	Transcript string `json:"-"`
}

// Ledger receives unknown mentions for human review. Implementations must
// treat the write as append-only; the pipeline never collapses duplicates
// across calls, only within a single extraction.
type Ledger interface {
	RecordUnknown(ctx context.Context, extractionID, mention, excerpt string, at time.Time) error
}

// Pipeline binds a catalog to the two candidate strategies and the ledger.
// Process is a pure read against the catalog and safe to call from many
// goroutines at once.
type Pipeline struct {
	catalog  *catalog.Catalog
	patterns []*contextPattern
	ledger   Ledger
	logger   *zap.Logger
}

// Option configures the extraction pipeline.
type Option func(*Pipeline)

// WithLedger wires a review ledger. Without one, unknown mentions are still
// returned but nothing is queued for review.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithExtraPatterns appends compiled user-defined context patterns after the
// built-in table.
func WithExtraPatterns(patterns []*contextPattern) Option {
	return func(p *Pipeline) { p.patterns = append(p.patterns, patterns...) }
}

// NewPipeline creates the extraction pipeline over a catalog.
func NewPipeline(cat *catalog.Catalog, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:  cat,
		patterns: defaultContextPatterns(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Candidates produces the ordered, deduplicated candidate phrases for a
// transcript: the union of the alias scan and pattern-based extraction,
// first-seen order preserved, sub-3-character noise dropped.
func (p *Pipeline) Candidates(transcript string) []string {
	transcript = truncateTranscript(transcript)
	lower := strings.ToLower(transcript)
	aliases := p.catalog.Aliases()

	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		if len([]rune(c)) < MinCandidateLength {
			return
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	// Strategy 1: exhaustive alias scan. O(aliases × transcript) by
	// construction; extraction is off the hot path and vocabularies are
	// bounded, so no term present verbatim is ever missed.
	for _, alias := range aliases {
		if strings.Contains(lower, alias) {
			add(alias)
		}
	}

	// Strategy 2: clinical-idiom patterns. Captured spans are promoted to
	// the alias form, so normalization happens at extraction time.
	for _, pat := range p.patterns {
		for _, m := range pat.regex.FindAllStringSubmatch(lower, -1) {
			if len(m) < 2 {
				continue
			}
			span := catalog.NormalizeTerm(m[1])
			if len([]rune(span)) < MinCandidateLength {
				continue
			}
			// Promote the alias form wherever the span touches the
			// vocabulary; only a span matching nothing at all survives raw,
			// which is exactly what feeds the review queue.
			matched := false
			if _, ok := p.catalog.Lookup(span); ok {
				add(span)
				matched = true
			}
			for _, alias := range aliases {
				if strings.Contains(span, alias) || strings.Contains(alias, span) {
					add(alias)
					matched = true
				}
			}
			if !matched {
				add(span)
			}
		}
	}

	return out
}

// Process runs the full pipeline: extract candidates, resolve each against
// the catalog, partition into known vs unknown, dedupe, and queue unknowns
// for review. Every symptom in the result is backed by a catalog entry at
// call time; ledger failures are logged and swallowed, never surfaced.
func (p *Pipeline) Process(ctx context.Context, transcript string) *Result {
	transcript = truncateTranscript(transcript)
	extractionID := uuid.NewString()
	now := time.Now().UTC()

	candidates := p.Candidates(transcript)
	p.logger.Info("extraction candidates generated",
		zap.String("extraction_id", extractionID),
		zap.Int("candidates", len(candidates)),
	)

	excerpt := truncateExcerpt(transcript)
	seenCodes := make(map[string]struct{})
	seenUnknown := make(map[string]struct{})
	result := &Result{
		ExtractionID: extractionID,
		Transcript:   transcript,
	}

	for _, phrase := range candidates {
		if sym, ok := p.catalog.Lookup(phrase); ok {
			// Dedup by code; first occurrence wins for matched_text.
			if _, dup := seenCodes[sym.Code]; dup {
				continue
			}
			seenCodes[sym.Code] = struct{}{}
			result.SymptomsPresent = append(result.SymptomsPresent, MatchedSymptom{
				Code:        sym.Code,
				Name:        sym.Name,
				MatchedText: phrase,
				Category:    sym.Category,
			})
			continue
		}

		mention := catalog.NormalizeTerm(phrase)
		if _, dup := seenUnknown[mention]; dup {
			continue
		}
		seenUnknown[mention] = struct{}{}
		result.UnknownMentions = append(result.UnknownMentions, mention)

		if p.ledger != nil {
			if err := p.ledger.RecordUnknown(ctx, extractionID, mention, excerpt, now); err != nil {
				// Losing an audit row must not fail the clinical workflow.
				p.logger.Warn("review ledger write failed",
					zap.String("extraction_id", extractionID),
					zap.String("mention", mention),
					zap.Error(err),
				)
			}
		}
	}

	result.SymptomCount = len(result.SymptomsPresent)
	result.UnknownCount = len(result.UnknownMentions)

	p.logger.Info("extraction complete",
		zap.String("extraction_id", extractionID),
		zap.Int("matched", result.SymptomCount),
		zap.Int("unknown", result.UnknownCount),
	)
	return result
}

// truncateTranscript enforces the transcript cap without cutting a UTF-8
// sequence mid-rune.
func truncateTranscript(s string) string {
	if len(s) <= MaxTranscriptBytes {
		return s
	}
	cut := MaxTranscriptBytes
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// truncateExcerpt bounds the ledger context excerpt.
func truncateExcerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= ExcerptLimit {
		return s
	}
	return string(runes[:ExcerptLimit])
}
