package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// LoadError indicates the bulk vocabulary source was missing or malformed.
// It is recoverable: the catalog initializes empty and extraction degrades
// to "everything unknown" instead of crashing the process.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading symptom catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var errEmptyHeader = errors.New("header row has no symptom columns")

// LoadFile rebuilds the catalog from a disease-symptom dataset CSV. The
// first record's fields, after the leading identifier column, enumerate
// every distinct symptom name; the (potentially huge) data rows below it
// are never read. Codes are assigned by source order, so a reload of the
// same file yields the same code for every name.
//
// On failure the catalog is reset to empty and a *LoadError is returned.
func (c *Catalog) LoadFile(path string) error {
	entries, err := ParseVocabulary(path)
	if err != nil {
		c.replace(nil)
		return err
	}
	c.replace(entries)
	c.logger.Info("symptom catalog loaded",
		zap.String("path", path),
		zap.Int("symptoms", c.Len()),
		zap.Int("aliases", c.AliasCount()),
	)
	return nil
}

// ParseVocabulary parses the vocabulary source into catalog entries without
// touching any live catalog state.
func ParseVocabulary(path string) ([]Symptom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	// Only the header row is consistent; data rows vary in width.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			err = errEmptyHeader
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(header) < 2 {
		return nil, &LoadError{Path: path, Err: errEmptyHeader}
	}

	// Skip the leading identifier column ("diseases").
	names := header[1:]
	entries := make([]Symptom, 0, len(names))
	for idx, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		// Codes are tied to column position, so blanks don't shift later codes.
		code := FormatCode(idx + 1)
		entries = append(entries, Symptom{
			Code:     code,
			Name:     name,
			Aliases:  []string{NormalizeTerm(name)},
			Category: Categorize(name),
		})
	}
	return entries, nil
}
