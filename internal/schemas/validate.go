// Package schemas validates keyword sets against JSON Schemas generated from
// their wire naming.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/cv-optimizer/internal/types"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Schema, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// KeywordCategorySchema returns the JSON Schema of a keyword set encoded
// with w: an object with exactly the five category keys, each an array of
// {term, weight} objects.
func KeywordCategorySchema(w types.WireSchema) map[string]any {
	entry := map[string]any{
		"type": "object",
		"properties": map[string]any{
			w.TermField:   map[string]any{"type": "string", "minLength": 1},
			w.WeightField: map[string]any{"type": "integer", "minimum": types.MinWeight, "maximum": types.MaxWeight},
		},
		"required":             []any{w.TermField, w.WeightField},
		"additionalProperties": false,
	}

	properties := make(map[string]any, len(types.Categories))
	required := make([]any, 0, len(types.Categories))
	for _, c := range types.Categories {
		key := w.Key(c)
		properties[key] = map[string]any{"type": "array", "items": entry}
		required = append(required, key)
	}

	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                "KeywordCategorySet (" + w.Name + ")",
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// ValidateKeywordSet encodes set with w and validates it against
// KeywordCategorySchema(w).
func ValidateKeywordSet(w types.WireSchema, set types.KeywordCategorySet) error {
	encoded, err := set.Encode(w)
	if err != nil {
		return fmt.Errorf("failed to encode keyword set: %w", err)
	}
	return ValidateKeywordJSON(w, encoded)
}

// ValidateKeywordJSON validates raw JSON against KeywordCategorySchema(w).
func ValidateKeywordJSON(w types.WireSchema, doc []byte) error {
	return validate(
		"keywords/"+w.Name,
		gojsonschema.NewGoLoader(KeywordCategorySchema(w)),
		gojsonschema.NewBytesLoader(doc),
	)
}

func validate(name string, schemaLoader, documentLoader gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Schema:  name,
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
