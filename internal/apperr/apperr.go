// Package apperr defines the error taxonomy shared across the answer
// lifecycle: errors are classified so callers can decide between retrying,
// surfacing a message, or giving up, using errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrCapability marks microphone/speech capture being denied or
	// unsupported on the client.
	ErrCapability = errors.New("capability error")
	// ErrEvaluation marks a failed AI evaluation: network failure or
	// malformed model output, including JSON-decode failures.
	ErrEvaluation = errors.New("evaluation error")
	// ErrPersistence marks a read/write/delete failure against the store.
	ErrPersistence = errors.New("persistence error")
	// ErrValidation marks rejected input: answer too short, missing
	// identifiers.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an update targeting a record that does not exist.
	ErrNotFound = errors.New("not found")
)

// Capability wraps err as a capability error.
func Capability(format string, args ...any) error {
	return wrap(ErrCapability, format, args...)
}

// Evaluation wraps err as an evaluation error.
func Evaluation(format string, args ...any) error {
	return wrap(ErrEvaluation, format, args...)
}

// Persistence wraps err as a persistence error.
func Persistence(format string, args ...any) error {
	return wrap(ErrPersistence, format, args...)
}

// Validation wraps err as a validation error.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// NotFound wraps err as a not-found error.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
