package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned when an insert conflicts with an existing
	// entry id. Conflicting writes are rejected, never silently overwritten.
	ErrDuplicateID = errors.New("duplicate log id")

	// ErrStorageUnavailable is returned when the persistence target cannot
	// be reached. Callers may retry; no partial state has been written.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports an entry rejected before any write: a missing
// required field, an unknown enumerated value, or a non-serializable
// payload. Never retryable.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid log entry: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// BatchError reports a failed batch insert. The whole batch has been rolled
// back; Index and ID identify the offending entry.
type BatchError struct {
	Index int
	ID    string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch insert failed at entry %d (id %q): %v", e.Index, e.ID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// InvalidFilterError reports a caller-supplied filter referencing an
// unknown enumerated value. Detected at the boundary, before the store is
// touched.
type InvalidFilterError struct {
	Field string
	Value string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s filter: %q", e.Field, e.Value)
}
