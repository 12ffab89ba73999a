package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTerm canonicalizes a term for alias-map keys and lookups:
// trimmed, inner whitespace collapsed, NFKC-folded, lowercased.
func NormalizeTerm(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = norm.NFKC.String(s)
	return strings.ToLower(s)
}
