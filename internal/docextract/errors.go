package docextract

import (
	"errors"
	"fmt"
)

// Stages at which extraction can fail.
const (
	StageOpen    = "open"
	StageExtract = "extract"
)

// ErrEmptyDocument is returned for a zero-length document buffer.
var ErrEmptyDocument = errors.New("document is empty")

// ExtractionError means the document could not be read at all: the
// container is invalid, or every strategy failed.
type ExtractionError struct {
	Stage string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("document extraction failed (%s): %v", e.Stage, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
