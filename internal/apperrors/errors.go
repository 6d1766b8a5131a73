// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	// ErrValidation marks bad input to submit/update operations. Recoverable,
	// reported to the caller.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup for a job or track that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation that is not valid for the entity's
	// current state (e.g. retrying a job that is not failed).
	ErrConflict = errors.New("conflict")

	// ErrExternal marks a codec or transcription engine failure. The pipeline
	// retries or degrades to a fallback where the stage allows it.
	ErrExternal = errors.New("external collaborator error")

	// ErrTimeout marks an exceeded sub-phase budget. The pipeline continues
	// with the most recent partial result instead of failing the job.
	ErrTimeout = errors.New("timeout")

	// ErrStorage marks a failed durable write. It is propagated to the caller
	// and the job status is left unchanged.
	ErrStorage = errors.New("storage error")

	// ErrCancelled marks an observed cancellation flag. Terminal for the job
	// but not a system fault.
	ErrCancelled = errors.New("cancelled")

	// ErrInternal marks everything else.
	ErrInternal = errors.New("internal error")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g. "label", "file")
	Resource string // For not found/conflict (e.g. "job", "track")
	Op       string // Operation that failed (e.g. "codec.decode")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource in the wrong state.
func Conflict(resource, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// External creates an external collaborator error wrapping the cause.
func External(op string, cause error) error {
	return &Error{
		Sentinel: ErrExternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Timeout creates a timeout error for a sub-phase budget.
func Timeout(op string, cause error) error {
	return &Error{
		Sentinel: ErrTimeout,
		Message:  fmt.Sprintf("%s timed out", op),
		Op:       op,
		Cause:    cause,
	}
}

// Storage creates a storage error wrapping a failed durable write.
func Storage(op string, cause error) error {
	return &Error{
		Sentinel: ErrStorage,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Cancelled creates a cancellation error for a job.
func Cancelled(jobID string) error {
	return &Error{
		Sentinel: ErrCancelled,
		Message:  "cancelled by user",
		Resource: "job",
		Op:       jobID,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
