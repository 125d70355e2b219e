package parsing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-optimizer/internal/types"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	require.NoError(t, dec.Decode(&obj))
	return obj
}

func TestNormalize_Weights(t *testing.T) {
	obj := decode(t, `{"technical_skills": [
		{"term": "A", "weight": 5},
		{"term": "B", "weight": 9},
		{"term": "C", "weight": 0},
		{"term": "D", "weight": "4"},
		{"term": "E", "weight": "high"},
		{"term": "F"},
		{"term": "G", "weight": 2.6},
		{"term": "H", "weight": null},
		{"term": "I", "weight": -3},
		{"term": "J", "weight": true}
	]}`)

	got := Normalize(obj).Get(types.CategoryTechnicalSkills)

	want := []types.KeywordEntry{
		{Term: "A", Weight: 5}, {Term: "B", Weight: 5}, {Term: "C", Weight: 1},
		{Term: "D", Weight: 4}, {Term: "E", Weight: 3}, {Term: "F", Weight: 3},
		{Term: "G", Weight: 3}, {Term: "H", Weight: 3}, {Term: "I", Weight: 1},
		{Term: "J", Weight: 3},
	}
	assert.Equal(t, want, got)
}

func TestNormalize_TermAliases(t *testing.T) {
	obj := decode(t, `{"industry_terms": [
		{"slowo": "API", "waga": 4},
		{"keyword": "SaaS", "priority": 2},
		{"word": "B2B"},
		{"name": "ERP", "Weight": 5},
		{"Term": "CRM"},
		{"weight": 5},
		{"term": ""},
		{"term": 12}
	]}`)

	got := Normalize(obj).Get(types.CategoryIndustryTerms)

	assert.Equal(t, []types.KeywordEntry{
		{Term: "API", Weight: 4},
		{Term: "SaaS", Weight: 2},
		{Term: "B2B", Weight: 3},
		{Term: "ERP", Weight: 5},
		{Term: "CRM", Weight: 3},
	}, got)
}

func TestNormalize_CategoryKeys(t *testing.T) {
	obj := decode(t, `{
		"Umiejetnosci_Techniczne": ["Go"],
		"required_experience": ["3 years"],
		"CECHY_OSOBOWOSCI": ["Curiosity"],
		"unrelated": ["ignored"]
	}`)

	set := Normalize(obj)

	assert.Equal(t, []types.KeywordEntry{{Term: "Go", Weight: 3}}, set.Get(types.CategoryTechnicalSkills))
	assert.Equal(t, []types.KeywordEntry{{Term: "3 years", Weight: 3}}, set.Get(types.CategoryRequiredExperience))
	assert.Equal(t, []types.KeywordEntry{{Term: "Curiosity", Weight: 3}}, set.Get(types.CategoryPersonalityTraits))
	assert.Empty(t, set.Get(types.CategoryKeyResponsibilities))
	assert.Empty(t, set.Get(types.CategoryIndustryTerms))
	assert.Equal(t, 3, set.Len())
}

func TestNormalize_ExactKeyBeatsCaseInsensitive(t *testing.T) {
	obj := decode(t, `{"TECHNICAL_SKILLS": ["upper"], "umiejetnosci_techniczne": ["polish"]}`)

	assert.Equal(t, []types.KeywordEntry{{Term: "polish", Weight: 3}},
		Normalize(obj).Get(types.CategoryTechnicalSkills))
}

func TestNormalize_ValueShapes(t *testing.T) {
	obj := decode(t, `{
		"technical_skills": {"term": "Go", "weight": 4},
		"required_experience": "5 years",
		"personality_traits": null,
		"key_responsibilities": 17,
		"industry_terms": [null, true, 3, ["nested"], "fintech"]
	}`)

	set := Normalize(obj)

	assert.Equal(t, []types.KeywordEntry{{Term: "Go", Weight: 4}}, set.Get(types.CategoryTechnicalSkills))
	assert.Equal(t, []types.KeywordEntry{{Term: "5 years", Weight: 3}}, set.Get(types.CategoryRequiredExperience))
	assert.Empty(t, set.Get(types.CategoryPersonalityTraits))
	assert.Empty(t, set.Get(types.CategoryKeyResponsibilities))
	assert.Equal(t, []types.KeywordEntry{{Term: "fintech", Weight: 3}}, set.Get(types.CategoryIndustryTerms))
}

func TestNormalize_ResultValidates(t *testing.T) {
	obj := decode(t, `{"technical_skills": [{"term": "Go", "weight": 100}, "SQL"]}`)
	assert.NoError(t, Normalize(obj).Validate())
}

func TestCoerceWeight(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{json.Number("4"), 4},
		{json.Number("4.5"), 5},
		{json.Number("1e9"), 5},
		{float64(2), 2},
		{3, 3},
		{" 2 ", 2},
		{"NaN", 3},
		{"", 3},
		{nil, 3},
		{[]any{1}, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerceWeight(tt.in), "%v", tt.in)
	}
}
