package extract

import (
	"fmt"
	"regexp"
)

// PatternSpec is one user-configurable context pattern, loaded from config.
// The regexp runs against the lowercased transcript and must have exactly
// one capture group for the candidate span.
type PatternSpec struct {
	Name   string `yaml:"name"`
	Regexp string `yaml:"regexp"`
}

// contextPattern is a compiled clinical-idiom template.
type contextPattern struct {
	regex *regexp.Regexp
	name  string
}

// defaultContextPatterns is the built-in table of clinical reporting idioms.
// Kept as data so the pattern set is testable and extensible without
// touching partition logic.
func defaultContextPatterns() []*contextPattern {
	return []*contextPattern{
		// "has a fever", "complains of chest pain", "presenting with nausea"
		{
			regex: regexp.MustCompile(`(?:have|has|had|experiencing|feeling|feel|feels|complains of|reports|presenting with)\s+(?:a\s+)?([a-z\s]{3,40})`),
			name:  "reported_symptom",
		},
		// "pain in my lower back", "tightness in the chest"
		{
			regex: regexp.MustCompile(`(?:pain in|ache in|discomfort in|tightness in|pressure in)\s+(?:my\s+|the\s+)?([a-z\s]{3,30})`),
			name:  "localized_pain",
		},
		// "my knee hurts", "my stomach aches"
		{
			regex: regexp.MustCompile(`my\s+([a-z\s]{3,25})\s+(?:hurts|aches|is sore|feels)`),
			name:  "body_part_complaint",
		},
		// "severe headache", "chronic cough"
		{
			regex: regexp.MustCompile(`(?:severe|sharp|dull|mild|chronic)\s+([a-z\s]{3,25})`),
			name:  "qualified_symptom",
		},
	}
}

// CompilePatterns compiles user-supplied pattern specs, rejecting entries
// without a capture group or with invalid syntax.
func CompilePatterns(specs []PatternSpec) ([]*contextPattern, error) {
	out := make([]*contextPattern, 0, len(specs))
	for _, spec := range specs {
		if spec.Regexp == "" {
			return nil, fmt.Errorf("pattern %q: empty regexp", spec.Name)
		}
		re, err := regexp.Compile(spec.Regexp)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("pattern %q: regexp needs a capture group", spec.Name)
		}
		out = append(out, &contextPattern{regex: re, name: spec.Name})
	}
	return out, nil
}
