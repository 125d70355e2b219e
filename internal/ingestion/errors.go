package ingestion

import "fmt"

// Stages at which a FetchError can occur.
const (
	StageFetch     = "fetch"
	StageSummarize = "summarize"
)

// ValidationError reports input that cannot yield a posting: a malformed URL
// or a page with no extractable text.
type ValidationError struct {
	URL    string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid job posting %s: %s: %v", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid job posting %s: %s", e.URL, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// FetchError reports a failure to retrieve or summarize the page.
type FetchError struct {
	URL        string
	Stage      string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to %s job posting %s: %v", e.Stage, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
