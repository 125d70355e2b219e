package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DefaultWeight is assigned to keywords whose source carries no weight.
const DefaultWeight = 3

// Weight bounds for KeywordEntry.
const (
	MinWeight = 1
	MaxWeight = 5
)

// Category is the canonical identifier of a keyword category.
type Category string

// The five keyword categories in their fixed output order.
const (
	CategoryTechnicalSkills     Category = "technical_skills"
	CategoryRequiredExperience  Category = "required_experience"
	CategoryPersonalityTraits   Category = "personality_traits"
	CategoryKeyResponsibilities Category = "key_responsibilities"
	CategoryIndustryTerms       Category = "industry_terms"
)

// Categories lists every category in output order.
var Categories = [...]Category{
	CategoryTechnicalSkills,
	CategoryRequiredExperience,
	CategoryPersonalityTraits,
	CategoryKeyResponsibilities,
	CategoryIndustryTerms,
}

var categoryLabels = map[Category]string{
	CategoryTechnicalSkills:     "Technical skills",
	CategoryRequiredExperience:  "Required experience",
	CategoryPersonalityTraits:   "Personality traits",
	CategoryKeyResponsibilities: "Key responsibilities",
	CategoryIndustryTerms:       "Industry terms",
}

// Label returns a human readable category name.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func categoryIndex(c Category) int {
	for i, known := range Categories {
		if known == c {
			return i
		}
	}
	return -1
}

// KeywordEntry is a single weighted keyword.
type KeywordEntry struct {
	Term   string `json:"term" validate:"required"`
	Weight int    `json:"weight" validate:"min=1,max=5"`
}

// WireSchema describes how a keyword set is named on the wire.
type WireSchema struct {
	Name        string
	Keys        map[Category]string
	TermField   string
	WeightField string
}

// EnglishWire uses the canonical category identifiers.
var EnglishWire = WireSchema{
	Name: "en",
	Keys: map[Category]string{
		CategoryTechnicalSkills:     "technical_skills",
		CategoryRequiredExperience:  "required_experience",
		CategoryPersonalityTraits:   "personality_traits",
		CategoryKeyResponsibilities: "key_responsibilities",
		CategoryIndustryTerms:       "industry_terms",
	},
	TermField:   "term",
	WeightField: "weight",
}

// PolishWire matches the keys used by the deployed Polish prompts.
var PolishWire = WireSchema{
	Name: "pl",
	Keys: map[Category]string{
		CategoryTechnicalSkills:     "umiejetnosci_techniczne",
		CategoryRequiredExperience:  "wymagane_doswiadczenie",
		CategoryPersonalityTraits:   "cechy_osobowosci",
		CategoryKeyResponsibilities: "kluczowe_obowiazki",
		CategoryIndustryTerms:       "branzowe_terminy",
	},
	TermField:   "slowo",
	WeightField: "waga",
}

// WireSchemas lists the supported wire schemas.
var WireSchemas = []WireSchema{PolishWire, EnglishWire}

// WireSchemaFor returns the wire schema registered under locale.
func WireSchemaFor(locale string) (WireSchema, error) {
	for _, w := range WireSchemas {
		if w.Name == locale {
			return w, nil
		}
	}
	return WireSchema{}, fmt.Errorf("unknown keyword locale %q", locale)
}

// Key returns the wire key for a category.
func (w WireSchema) Key(c Category) string {
	if key, ok := w.Keys[c]; ok {
		return key
	}
	return string(c)
}

// KeywordCategorySet maps every category to its keywords. The zero value
// and every constructed value hold all five categories.
type KeywordCategorySet struct {
	entries [len(Categories)][]KeywordEntry
	failure string
}

// NewKeywordCategorySet builds a set from per-category entries. Categories
// missing from m are present and empty in the result.
func NewKeywordCategorySet(m map[Category][]KeywordEntry) KeywordCategorySet {
	var s KeywordCategorySet
	for i, c := range Categories {
		s.entries[i] = copyEntries(m[c])
	}
	return s
}

// NewFailedKeywordCategorySet builds the set returned in place of a parse
// result. Every category holds entry, and reason is kept for diagnostics.
func NewFailedKeywordCategorySet(entry KeywordEntry, reason string) KeywordCategorySet {
	var s KeywordCategorySet
	for i := range Categories {
		s.entries[i] = []KeywordEntry{entry}
	}
	s.failure = reason
	return s
}

func copyEntries(in []KeywordEntry) []KeywordEntry {
	out := make([]KeywordEntry, len(in))
	copy(out, in)
	return out
}

// Get returns a copy of the entries stored under c.
func (s KeywordCategorySet) Get(c Category) []KeywordEntry {
	i := categoryIndex(c)
	if i < 0 {
		return []KeywordEntry{}
	}
	return copyEntries(s.entries[i])
}

// Len returns the total number of entries across categories.
func (s KeywordCategorySet) Len() int {
	n := 0
	for _, entries := range s.entries {
		n += len(entries)
	}
	return n
}

// IsFailure reports whether the set describes a parse failure.
func (s KeywordCategorySet) IsFailure() bool {
	return s.failure != ""
}

// FailureReason returns the untruncated failure detail, if any.
func (s KeywordCategorySet) FailureReason() string {
	return s.failure
}

var entryValidator = validator.New()

// Validate checks every entry against its field constraints.
func (s KeywordCategorySet) Validate() error {
	for i, c := range Categories {
		for j, entry := range s.entries[i] {
			if err := entryValidator.Struct(entry); err != nil {
				return fmt.Errorf("%s[%d]: %w", c, j, err)
			}
		}
	}
	return nil
}

// Encode writes the set as a JSON object using w's naming, with categories
// in their fixed order.
func (s KeywordCategorySet) Encode(w WireSchema) ([]byte, error) {
	termKey, err := json.Marshal(w.TermField)
	if err != nil {
		return nil, err
	}
	weightKey, err := json.Marshal(w.WeightField)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(w.Key(c))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":[")
		for j, entry := range s.entries[i] {
			if j > 0 {
				buf.WriteByte(',')
			}
			term, err := json.Marshal(entry.Term)
			if err != nil {
				return nil, err
			}
			buf.WriteByte('{')
			buf.Write(termKey)
			buf.WriteByte(':')
			buf.Write(term)
			buf.WriteByte(',')
			buf.Write(weightKey)
			fmt.Fprintf(&buf, ":%d}", entry.Weight)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the set with EnglishWire naming.
func (s KeywordCategorySet) MarshalJSON() ([]byte, error) {
	return s.Encode(EnglishWire)
}
