// Package parsing turns free-form model answers into keyword sets. Parsing
// never fails: unusable answers yield a failure payload that still has the
// shape of a keyword set.
package parsing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/types"
)

// Parser extracts keyword sets from model responses. It is stateless and
// safe for concurrent use.
type Parser struct {
	candidates []CandidateFunc
	logger     *zap.Logger
}

// NewParser creates a Parser. A nil logger discards output.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{candidates: DefaultCandidates, logger: logger}
}

// Parse returns the keyword set in raw, or a failure payload.
func (p *Parser) Parse(raw string) types.KeywordCategorySet {
	set, err := p.ParseStrict(raw)
	if err != nil {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			parseErr = &ParseError{Class: ClassDecodeError, Detail: err.Error(), Cause: err}
		}
		p.logger.Warn("could not parse keyword response",
			zap.String("class", string(parseErr.Class)),
			zap.String("detail", parseErr.Detail),
			zap.Int("response_chars", len(raw)))
		return FailurePayload(parseErr.Class, parseErr.Detail)
	}
	return set
}

// ParseStrict is Parse that reports failures as *ParseError instead of a
// failure payload.
func (p *Parser) ParseStrict(raw string) (set types.KeywordCategorySet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{Class: ClassDecodeError, Detail: fmt.Sprint(r)}
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return types.KeywordCategorySet{}, &ParseError{Class: ClassEmptyResponse, Detail: "response is empty"}
	}

	candidate, ok := firstCandidate(p.candidates, raw)
	if !ok {
		return types.KeywordCategorySet{}, &ParseError{Class: ClassNoCandidate, Detail: "no JSON candidate in response"}
	}

	obj, err := decodeObject(candidate)
	if err != nil {
		// A fenced block may still wrap the object in prose.
		if inner, ok := BraceBlock(candidate); ok && inner != candidate {
			if innerObj, innerErr := decodeObject(inner); innerErr == nil {
				return Normalize(innerObj), nil
			}
		}
		return types.KeywordCategorySet{}, err
	}
	return Normalize(obj), nil
}

func firstCandidate(candidates []CandidateFunc, raw string) (string, bool) {
	for _, candidate := range candidates {
		if text, ok := candidate(raw); ok {
			return text, true
		}
	}
	return "", false
}

// decodeObject decodes s as exactly one JSON object, keeping numbers as
// json.Number.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, classifyDecodeError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Class: ClassSyntaxError, Detail: "unexpected data after JSON value"}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Class: ClassTypeError, Detail: fmt.Sprintf("top level is %s, not an object", jsonKind(v))}
	}
	return obj, nil
}

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &ParseError{Class: ClassSyntaxError, Detail: err.Error(), Cause: err}
	}
	return &ParseError{Class: ClassDecodeError, Detail: err.Error(), Cause: err}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
