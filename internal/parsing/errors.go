package parsing

import (
	"fmt"
	"unicode/utf8"

	"github.com/jonathan/cv-optimizer/internal/types"
)

// ErrorClass names why a response could not be parsed.
type ErrorClass string

const (
	ClassEmptyResponse ErrorClass = "EmptyResponse"
	ClassNoCandidate   ErrorClass = "NoCandidate"
	ClassSyntaxError   ErrorClass = "SyntaxError"
	ClassTypeError     ErrorClass = "TypeError"
	ClassDecodeError   ErrorClass = "DecodeError"
)

// failureDetailRunes caps the detail shown in failure entries.
const failureDetailRunes = 30

// ParseError describes a response that could not be turned into keywords.
type ParseError struct {
	Class  ErrorClass
	Detail string
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// FailurePayload builds the keyword set returned in place of a parse result.
// Every category holds one entry naming the error, so callers that only
// render keywords still show something meaningful.
func FailurePayload(class ErrorClass, detail string) types.KeywordCategorySet {
	short := detail
	if utf8.RuneCountInString(short) > failureDetailRunes {
		short = string([]rune(short)[:failureDetailRunes])
	}
	entry := types.KeywordEntry{
		Term:   fmt.Sprintf("%s: %s", class, short),
		Weight: types.DefaultWeight,
	}
	reason := detail
	if reason == "" {
		reason = string(class)
	}
	return types.NewFailedKeywordCategorySet(entry, reason)
}
