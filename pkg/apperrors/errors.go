// Package apperrors defines the error taxonomy shared across the engine.
//
// Sentinel errors cover the common not-found/conflict cases. The typed
// errors map to how a failure propagates: validation errors surface to the
// API caller, configuration errors fail a single agent invocation,
// transient errors are retried by the job queue, and permanent failures
// are recorded on the action row and never retried.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrDuplicateEvent  = errors.New("duplicate event")
	ErrUnknownConsumer = errors.New("unknown consumer")
	ErrUnknownCreator  = errors.New("unknown creator")
)

// ValidationError is rejected before persistence and surfaces as a 4xx.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation creates a ValidationError for a field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigurationError is fatal to one agent invocation only: an
// unresolvable decision-unit key, a malformed trigger filter, or an
// unsupported implementation tag.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfiguration creates a ConfigurationError.
func NewConfiguration(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// TransientError wraps a retryable dependency failure (network timeout to
// an LLM, channel provider, or HTTP delegate). The job queue's retry
// policy governs re-attempts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PermanentFailure is a hard rejection from a channel provider (invalid
// recipient, unsupported payload). Recorded, never retried.
type PermanentFailure struct {
	Err error
}

func (e *PermanentFailure) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentFailure) Unwrap() error { return e.Err }

// Permanent wraps err as a hard failure.
func Permanent(err error) *PermanentFailure {
	return &PermanentFailure{Err: err}
}

// IsPermanent reports whether err is a hard failure.
func IsPermanent(err error) bool {
	var pe *PermanentFailure
	return errors.As(err, &pe)
}
