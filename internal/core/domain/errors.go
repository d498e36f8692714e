package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor is registered for a file type.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrExtraction indicates a format-specific extraction failure.
	ErrExtraction = errors.New("extraction failed")

	// ErrEncoding indicates raw bytes could not be decoded to text.
	ErrEncoding = errors.New("undecodable text encoding")

	// ErrStoreUnavailable indicates the canonical store could not be reached
	// or a transaction could not be completed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConflictingRun indicates another ingest or resegmentation run is
	// in flight for the same work.
	ErrConflictingRun = errors.New("conflicting run in flight")

	// ErrRangeOutOfBounds indicates slice offsets outside the canonical text.
	ErrRangeOutOfBounds = errors.New("range out of bounds")

	// ErrFileTooLarge indicates a watched file exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
)

// StageError tags a pipeline failure with the stage it occurred in, so the
// watcher can record where a file fell over without parsing messages.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with a pipeline stage tag. A nil err returns nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the pipeline stage recorded on err, or "persist" when the
// error carries no tag (store and transport failures are untagged).
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StagePersist
}

// IsTerminal reports whether an ingest failure must not be retried.
// Input errors (unsupported type, oversized, undecodable), format parse
// failures and range errors are deterministic: the same bytes fail the same
// way every time. Store failures and plain I/O errors stay retryable.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrEncoding) ||
		errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrRangeOutOfBounds)
}

// IsTransient reports whether an ingest failure may succeed on retry.
// Cancellation is transient: the attempt was interrupted, not refuted.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsCancellation(err) {
		return true
	}
	return !IsTerminal(err)
}

// IsCancellation reports whether err means the attempt was cut short by its
// context rather than failing on its own. Callers with an attempt budget
// should not charge these against it.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
