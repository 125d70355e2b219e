package parsing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-optimizer/internal/types"
)

func TestParse_PolishWireInFence(t *testing.T) {
	raw := "Oto wynik:\n```json\n" + `{
		"umiejetnosci_techniczne": [{"slowo": "Python", "waga": 5}, {"slowo": "SQL", "waga": 4}],
		"wymagane_doswiadczenie": [{"slowo": "5 lat w IT", "waga": 5}],
		"cechy_osobowosci": [{"slowo": "Komunikatywność", "waga": 3}],
		"kluczowe_obowiazki": [{"slowo": "Tworzenie raportów", "waga": 4}],
		"branzowe_terminy": [{"slowo": "API", "waga": 4}]
	}` + "\n```"

	set := NewParser(nil).Parse(raw)

	require.False(t, set.IsFailure(), set.FailureReason())
	assert.Equal(t, []types.KeywordEntry{{Term: "Python", Weight: 5}, {Term: "SQL", Weight: 4}},
		set.Get(types.CategoryTechnicalSkills))
	assert.Equal(t, []types.KeywordEntry{{Term: "API", Weight: 4}}, set.Get(types.CategoryIndustryTerms))
	assert.Equal(t, 6, set.Len())
}

func TestParse_BareJSONWithProse(t *testing.T) {
	raw := `Here are the keywords: {"technical_skills": ["Go", "  ", "Kafka"]} Let me know!`

	set := NewParser(nil).Parse(raw)

	require.False(t, set.IsFailure())
	assert.Equal(t, []types.KeywordEntry{{Term: "Go", Weight: 3}, {Term: "Kafka", Weight: 3}},
		set.Get(types.CategoryTechnicalSkills))
	assert.Empty(t, set.Get(types.CategoryRequiredExperience))
}

func TestParse_FenceWrappingProse(t *testing.T) {
	raw := "```\nResult follows {\"technical_skills\": [\"Rust\"]} end\n```"

	set := NewParser(nil).Parse(raw)
	require.False(t, set.IsFailure())
	assert.Equal(t, []types.KeywordEntry{{Term: "Rust", Weight: 3}}, set.Get(types.CategoryTechnicalSkills))
}

func TestParse_ObjectAfterUnmatchedBrace(t *testing.T) {
	raw := "Result {partial\n{\"technical_skills\":[\"Go\"]}"

	set := NewParser(nil).Parse(raw)
	require.False(t, set.IsFailure(), set.FailureReason())
	assert.Equal(t, []types.KeywordEntry{{Term: "Go", Weight: 3}}, set.Get(types.CategoryTechnicalSkills))
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		class ErrorClass
	}{
		{name: "empty", raw: "", class: ClassEmptyResponse},
		{name: "whitespace", raw: "  \n ", class: ClassEmptyResponse},
		{name: "prose only", raw: "I cannot help with that request.", class: ClassSyntaxError},
		{name: "truncated object", raw: `{"technical_skills": [{"term": "Go"`, class: ClassSyntaxError},
		{name: "array top level", raw: `["Go", "SQL"]`, class: ClassTypeError},
		{name: "number top level", raw: "42", class: ClassTypeError},
		{name: "cut off inside fence", raw: "```json\n{\"a\": \n```", class: ClassSyntaxError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewParser(nil).Parse(tt.raw)

			require.True(t, set.IsFailure())
			for _, c := range types.Categories {
				entries := set.Get(c)
				require.Len(t, entries, 1, c)
				assert.True(t, strings.HasPrefix(entries[0].Term, string(tt.class)+": "), entries[0].Term)
				assert.Equal(t, types.DefaultWeight, entries[0].Weight)
			}
			assert.NoError(t, set.Validate())
		})
	}
}

func TestParse_TrailingProseInsideFence(t *testing.T) {
	set := NewParser(nil).Parse("```\n{\"technical_skills\": [\"Go\"]} as requested\n```")
	require.False(t, set.IsFailure())
	assert.Equal(t, []types.KeywordEntry{{Term: "Go", Weight: 3}}, set.Get(types.CategoryTechnicalSkills))
}

func TestParseStrict_ReturnsParseError(t *testing.T) {
	_, err := NewParser(nil).ParseStrict("[]")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, ClassTypeError, parseErr.Class)
}

func TestFailurePayload_TruncatesDetail(t *testing.T) {
	detail := strings.Repeat("ż", 45)

	set := FailurePayload(ClassSyntaxError, detail)

	entries := set.Get(types.CategoryIndustryTerms)
	require.Len(t, entries, 1)
	assert.Equal(t, "SyntaxError: "+strings.Repeat("ż", 30), entries[0].Term)
	assert.Equal(t, detail, set.FailureReason())
}

func TestFailurePayload_EmptyDetailStillFails(t *testing.T) {
	set := FailurePayload(ClassNoCandidate, "")
	assert.True(t, set.IsFailure())
}

func TestParse_NoCandidateWithCustomChain(t *testing.T) {
	p := NewParser(nil)
	p.candidates = []CandidateFunc{FencedBlock}

	set := p.Parse(`{"technical_skills": []}`)
	require.True(t, set.IsFailure())
	assert.True(t, strings.HasPrefix(set.Get(types.CategoryTechnicalSkills)[0].Term, string(ClassNoCandidate)))
}

func TestParse_Idempotent(t *testing.T) {
	original := types.NewKeywordCategorySet(map[types.Category][]types.KeywordEntry{
		types.CategoryTechnicalSkills:     {{Term: "Go", Weight: 5}, {Term: "Terraform \"IaC\"", Weight: 2}},
		types.CategoryPersonalityTraits:   {{Term: "Samodzielność", Weight: 3}},
		types.CategoryKeyResponsibilities: {{Term: "Code review", Weight: 1}},
	})

	p := NewParser(nil)
	for _, w := range types.WireSchemas {
		t.Run(w.Name, func(t *testing.T) {
			encoded, err := original.Encode(w)
			require.NoError(t, err)

			again := p.Parse(string(encoded))
			assert.Equal(t, original, again)

			encodedAgain, err := again.Encode(w)
			require.NoError(t, err)
			assert.JSONEq(t, string(encoded), string(encodedAgain))
		})
	}
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"{", "}", "```", "``````", "{{{{", `{"a":`, "\x00\xff", `{"technical_skills": {"term": null}}`,
		`{"technical_skills": [null, true, 1.5, {"waga": 5}]}`,
	}
	p := NewParser(nil)
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = p.Parse(in) }, in)
	}
}
