package catalog

import "strings"

// CategoryGeneral is the fallback category when no keyword group matches.
const CategoryGeneral = "general"

// keywordGroup maps one category to the substrings that signal it.
type keywordGroup struct {
	category string
	keywords []string
}

// categoryGroups is checked in order; the first group with a matching
// keyword wins. Order matters: "chest pain" should classify as
// cardiovascular even though "pain" alone says nothing.
var categoryGroups = []keywordGroup{
	{"cardiovascular", []string{"heart", "chest", "cardiac", "palpitation"}},
	{"respiratory", []string{"breath", "cough", "wheez", "throat", "nose", "sinus"}},
	{"neurological", []string{"head", "dizz", "seizure", "memory", "confusion"}},
	{"gastrointestinal", []string{"stomach", "abdominal", "bowel", "diarrhea", "vomit", "nausea"}},
	{"musculoskeletal", []string{"joint", "muscle", "back", "neck", "leg", "arm", "knee", "hip"}},
	{"dermatological", []string{"skin", "rash", "itch", "lesion"}},
	{"psychological", []string{"anxiety", "depression", "psycho", "emotion"}},
	{"urological", []string{"urin", "bladder", "kidney"}},
	{"visual", []string{"eye", "vision"}},
	{"ENT", []string{"ear", "hearing"}},
	{"reproductive", []string{"menstrual", "pregnancy", "vaginal"}},
}

// Categories lists every category in classification order, fallback last.
func Categories() []string {
	out := make([]string, 0, len(categoryGroups)+1)
	for _, g := range categoryGroups {
		out = append(out, g.category)
	}
	return append(out, CategoryGeneral)
}

// Categorize assigns a category from a symptom name using ordered keyword
// groups. Pure function of the name: the same name always classifies the
// same way.
func Categorize(name string) string {
	nl := strings.ToLower(name)
	for _, group := range categoryGroups {
		for _, kw := range group.keywords {
			if strings.Contains(nl, kw) {
				return group.category
			}
		}
	}
	return CategoryGeneral
}
