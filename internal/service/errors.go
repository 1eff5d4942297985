package service

import (
	"errors"
	"fmt"
)

// Build-time errors are recoverable: the offending source file or chunk is
// skipped and the build continues. Query-time errors abort only the current
// query and are surfaced to the caller as a structured error payload.
var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat is returned for source files with an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrSourceRead is returned when a source file cannot be read or decoded.
	ErrSourceRead = errors.New("source read failure")
	// ErrDegenerateInput is returned when a chunk or query has no embeddable content
	// (empty text, silent or zero-length audio).
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrIndexUnavailable is returned when the index for a required embedding space
	// is empty or absent.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrEmbeddingModel is returned when an embedding model fails to produce a vector.
	ErrEmbeddingModel = errors.New("embedding model failure")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
