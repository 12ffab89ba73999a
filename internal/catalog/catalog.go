// Package catalog holds the controlled symptom vocabulary for symcat.
//
// The catalog is the anti-hallucination boundary: the extraction pipeline
// only ever reports symptoms whose aliases resolve here. Lookup is exact
// (case-insensitive, whitespace-trimmed); partial matching is the
// extractor's job, not the catalog's.
//
// Readers and the single writer path coexist without locking on the read
// side: the catalog keeps an immutable snapshot behind an atomic pointer.
// Writers build a complete replacement snapshot and publish it with one
// swap, so a concurrent reader observes either the pre- or post-mutation
// vocabulary, never a half-built alias map.
package catalog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// CodePrefix is the fixed prefix on every symptom code.
const CodePrefix = "S"

// Symptom is a single validated catalog entry.
type Symptom struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases"`
	Category string   `json:"category"`
}

// FormatCode renders a sequential index as a catalog code (S00001, S00002, ...).
func FormatCode(n int) string {
	return fmt.Sprintf("%s%05d", CodePrefix, n)
}

// snapshot is one immutable generation of the vocabulary.
type snapshot struct {
	symptoms map[string]Symptom // code -> entry
	aliases  map[string]string  // normalized alias -> code
	ordered  []string           // aliases in registration order, for stable scans
	maxCode  int                // highest numeric code suffix in use
}

func emptySnapshot() *snapshot {
	return &snapshot{
		symptoms: map[string]Symptom{},
		aliases:  map[string]string{},
	}
}

// clone copies maps and the ordered alias list so a writer can mutate freely.
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		symptoms: make(map[string]Symptom, len(s.symptoms)+1),
		aliases:  make(map[string]string, len(s.aliases)+1),
		ordered:  make([]string, len(s.ordered), len(s.ordered)+2),
		maxCode:  s.maxCode,
	}
	for k, v := range s.symptoms {
		next.symptoms[k] = v
	}
	for k, v := range s.aliases {
		next.aliases[k] = v
	}
	copy(next.ordered, s.ordered)
	return next
}

// register maps one normalized alias to a code, keeping registration order.
func (s *snapshot) register(alias, code string) {
	if alias == "" {
		return
	}
	if _, exists := s.aliases[alias]; !exists {
		s.ordered = append(s.ordered, alias)
	}
	s.aliases[alias] = code
}

// Catalog is the in-memory symptom vocabulary with an atomic read path.
type Catalog struct {
	mu     sync.Mutex // serializes writers; readers never take it
	snap   atomic.Pointer[snapshot]
	logger *zap.Logger
}

// New returns an empty catalog. Pass zap.NewNop() when logging is unwanted.
func New(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{logger: logger}
	c.snap.Store(emptySnapshot())
	return c
}

// Lookup resolves text to a catalog entry by exact alias match.
// Matching is case-insensitive and whitespace-trimmed; no partial matching.
func (c *Catalog) Lookup(text string) (Symptom, bool) {
	snap := c.snap.Load()
	code, ok := snap.aliases[NormalizeTerm(text)]
	if !ok {
		return Symptom{}, false
	}
	return snap.symptoms[code], true
}

// Add registers a new symptom under the next unused sequential code and
// returns that code. The canonical name and every supplied alias become
// lookup keys. The mutation is in-memory only; the bulk vocabulary source
// is never written back.
func (c *Catalog) Add(name, category string, aliases []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snap.Load().clone()
	next.maxCode++
	code := FormatCode(next.maxCode)

	if category == "" {
		category = Categorize(name)
	}

	entry := Symptom{
		Code:     code,
		Name:     name,
		Category: category,
	}
	canonical := NormalizeTerm(name)
	entry.Aliases = append(entry.Aliases, canonical)
	next.register(canonical, code)
	for _, alias := range aliases {
		a := NormalizeTerm(alias)
		if a == "" || a == canonical {
			continue
		}
		entry.Aliases = append(entry.Aliases, a)
		next.register(a, code)
	}
	next.symptoms[code] = entry

	c.snap.Store(next)
	c.logger.Info("catalog symptom added",
		zap.String("code", code),
		zap.String("name", name),
		zap.String("category", category),
	)
	return code
}

// replace swaps the whole vocabulary in one publish. Used by the loader so a
// reload clears and rebuilds instead of accumulating duplicates.
func (c *Catalog) replace(entries []Symptom) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := emptySnapshot()
	for _, entry := range entries {
		next.symptoms[entry.Code] = entry
		for _, alias := range entry.Aliases {
			next.register(NormalizeTerm(alias), entry.Code)
		}
		if n, err := parseCodeIndex(entry.Code); err == nil && n > next.maxCode {
			next.maxCode = n
		}
	}
	c.snap.Store(next)
}

// parseCodeIndex extracts the numeric suffix from a catalog code.
func parseCodeIndex(code string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(code, CodePrefix+"%d", &n); err != nil {
		return 0, fmt.Errorf("parsing code %q: %w", code, err)
	}
	return n, nil
}

// Len reports the number of symptoms in the current snapshot.
func (c *Catalog) Len() int {
	return len(c.snap.Load().symptoms)
}

// AliasCount reports the number of registered lookup aliases.
func (c *Catalog) AliasCount() int {
	return len(c.snap.Load().aliases)
}

// Aliases returns every registered alias in registration order. The slice
// belongs to the current snapshot and must not be modified.
func (c *Catalog) Aliases() []string {
	return c.snap.Load().ordered
}

// Symptoms returns every entry ordered by code.
func (c *Catalog) Symptoms() []Symptom {
	snap := c.snap.Load()
	out := make([]Symptom, 0, len(snap.symptoms))
	for i := 1; i <= snap.maxCode; i++ {
		if entry, ok := snap.symptoms[FormatCode(i)]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// CategoryCounts returns the symptom count per category.
func (c *Catalog) CategoryCounts() map[string]int {
	snap := c.snap.Load()
	counts := make(map[string]int)
	for _, entry := range snap.symptoms {
		counts[entry.Category]++
	}
	return counts
}
