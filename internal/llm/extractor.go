// Package llm - extractor.go builds prompts that ask for a fixed JSON shape.
package llm

import (
	"fmt"
	"strings"

	"github.com/jonathan/cv-optimizer/internal/types"
)

// ExtractionSchema defines the JSON object the model is asked to return.
type ExtractionSchema struct {
	Name         string        // Schema name (e.g., "JobKeywords")
	Description  string        // Preamble describing the extraction task
	Fields       []SchemaField // Expected output fields, in order
	Instructions []string      // Extra rules listed after the structure
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string // Description for the model
	Required    bool
}

// BuildExtractionPrompt constructs the prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	if schema.Description != "" {
		sb.WriteString(strings.TrimSpace(schema.Description))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "\"string\""
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		fmt.Fprintf(&sb, "  %q: %s%s", field.Name, typeHint, requiredHint)
		if field.Description != "" {
			fmt.Fprintf(&sb, " // %s", field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	for _, rule := range schema.Instructions {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}
	sb.WriteString("- Return ONLY the JSON object, no explanation.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

var keywordFieldHints = map[types.Category]string{
	types.CategoryTechnicalSkills:     "tools, languages, frameworks and hard skills",
	types.CategoryRequiredExperience:  "years, domains and seniority the role asks for",
	types.CategoryPersonalityTraits:   "soft skills and traits",
	types.CategoryKeyResponsibilities: "main duties of the role",
	types.CategoryIndustryTerms:       "domain vocabulary and sector terms",
}

// KeywordSchema describes the five keyword categories using w's naming, so
// the model answers in the same shape the parser normalizes.
func KeywordSchema(w types.WireSchema, description string) ExtractionSchema {
	entryType := fmt.Sprintf("[{%q: \"string\", %q: 1-5}]", w.TermField, w.WeightField)

	fields := make([]SchemaField, 0, len(types.Categories))
	for _, c := range types.Categories {
		fields = append(fields, SchemaField{
			Name:        w.Key(c),
			Type:        entryType,
			Description: keywordFieldHints[c],
			Required:    true,
		})
	}

	return ExtractionSchema{
		Name:        "JobKeywords",
		Description: description,
		Fields:      fields,
		Instructions: []string{
			fmt.Sprintf("%q is the importance of the keyword: 5 is critical, 1 is marginal.", w.WeightField),
			"Include every key even when it has no keywords; use an empty list.",
			"Keep keywords in the language of the job description.",
		},
	}
}
