package llm

import (
	"errors"
	"fmt"
	"time"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// OutcomeSuccess carries the generated text.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRateLimited means the endpoint answered 429. Never retried.
	OutcomeRateLimited
	// OutcomeTransientFailure covers transport errors and 5xx answers. Retried.
	OutcomeTransientFailure
	// OutcomeFatalFailure covers answers no retry can fix.
	OutcomeFatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomeFatalFailure:
		return "fatal_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one remote call.
type Outcome struct {
	Kind OutcomeKind
	// Text is set for OutcomeSuccess.
	Text string
	// Detail describes a failure.
	Detail     string
	StatusCode int
	// RetryAfter is the delay requested by a 429 answer, if any.
	RetryAfter time.Duration
}

// Success returns a successful Outcome.
func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

// RateLimited returns a rate-limited Outcome.
func RateLimited(detail string, retryAfter time.Duration) Outcome {
	return Outcome{Kind: OutcomeRateLimited, Detail: detail, StatusCode: 429, RetryAfter: retryAfter}
}

// Transient returns a retryable failure Outcome.
func Transient(detail string) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Detail: detail}
}

// Fatal returns a non-retryable failure Outcome.
func Fatal(detail string) Outcome {
	return Outcome{Kind: OutcomeFatalFailure, Detail: detail}
}

// withStatus records the HTTP status that produced o.
func (o Outcome) withStatus(status int) Outcome {
	o.StatusCode = status
	return o
}

// OK reports whether o is a success.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Sentinel errors matched by CallError.Is.
var (
	ErrRateLimited = errors.New("remote endpoint rate limit reached")
	ErrTransient   = errors.New("remote endpoint temporarily unavailable")
	ErrFatal       = errors.New("remote endpoint returned an unusable response")
)

// CallError is the error form of a failed Outcome, for callers that
// propagate failures through error returns.
type CallError struct {
	Kind       OutcomeKind
	Detail     string
	StatusCode int
	RetryAfter time.Duration
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote call %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("remote call %s: %s", e.Kind, e.Detail)
}

// Is matches the sentinel for the error's kind.
func (e *CallError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == OutcomeRateLimited
	case ErrTransient:
		return e.Kind == OutcomeTransientFailure
	case ErrFatal:
		return e.Kind == OutcomeFatalFailure
	}
	return false
}

// Err returns nil for a success and a *CallError otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &CallError{Kind: o.Kind, Detail: o.Detail, StatusCode: o.StatusCode, RetryAfter: o.RetryAfter}
}
