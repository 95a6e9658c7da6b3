package domain

import (
	"context"
	"errors"
)

// Domain errors - used across all layers
var (
	// ErrInvalidDocument indicates the stored bytes are not a parseable PDF
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocument indicates the PDF contains no pages
	ErrEmptyDocument = errors.New("empty document")

	// ErrPreprocessing indicates a malformed or zero-sized page image
	ErrPreprocessing = errors.New("preprocessing failed")

	// ErrRecognition indicates a recognition engine is unavailable or failed
	// on every page
	ErrRecognition = errors.New("recognition failed")

	// ErrMapping indicates an internal field-mapper invariant violation
	ErrMapping = errors.New("field mapping failed")

	// ErrPersistence indicates a storage-layer failure
	ErrPersistence = errors.New("persistence failed")

	// ErrObjectStore indicates the raw file could not be fetched
	ErrObjectStore = errors.New("object store failed")

	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition indicates a document status change that would
	// regress from a terminal state
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IsTransient reports whether an error is worth retrying with backoff.
// Malformed input and mapper defects are terminal; engine, storage and
// object-store failures (including timeouts) are transient.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, ErrRecognition),
		errors.Is(err, ErrPersistence),
		errors.Is(err, ErrObjectStore):
		return true
	case errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrEmptyDocument),
		errors.Is(err, ErrMapping):
		return false
	}
	// A processing timeout counts as transient: the document must not stay
	// PROCESSING forever, and a retry may succeed.
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
