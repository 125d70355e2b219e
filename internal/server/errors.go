// Package server provides the HTTP API for the CV optimizer.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cv-optimizer/internal/docextract"
	"github.com/jonathan/cv-optimizer/internal/ingestion"
	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/pipeline"
)

// rateLimitedMessage is shown when the remote endpoint rejects a call for quota.
const rateLimitedMessage = "The text generation service is busy. Please try again later."

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		taskErr       *pipeline.TaskError
		urlErr        *ingestion.ValidationError
		extractionErr *docextract.ExtractionError
		fetchErr      *ingestion.FetchError
		tooLarge      *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &taskErr), errors.As(err, &urlErr):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &extractionErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr), errors.Is(err, llm.ErrTransient), errors.Is(err, llm.ErrFatal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text returned to clients.
func publicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusTooManyRequests:
		return rateLimitedMessage
	case http.StatusInternalServerError:
		return "Internal error while processing the request."
	default:
		return err.Error()
	}
}
