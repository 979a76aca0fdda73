// Package errors defines the error taxonomy shared by stepflow packages.
package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the stepflow library

var (
	// ErrClosed indicates that an operation was attempted on a closed queue or scheduler
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that a bounded wait expired before a run completed
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrProcessing indicates that the queue rejected a call because a run is in flight
	ErrProcessing = errors.New("queue is processing")

	// ErrStepState indicates that a step cannot accept the request in its current status
	ErrStepState = errors.New("invalid step state")

	// ErrIndexOutOfRange indicates that a positional lookup fell outside the queue
	ErrIndexOutOfRange = errors.New("index out of range")
)

// IsRetryable returns true if the error indicates a condition that may clear
// once the current run finishes.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrProcessing)
}

// IsStateError returns true if the error is a rejected state transition.
func IsStateError(err error) bool {
	var serr *StateError
	return errors.As(err, &serr)
}

// IsValidationError returns true if the error is a configuration error.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// StateError reports an operation that was rejected and left state unchanged.
// Err is one of the sentinel errors of this package.
type StateError struct {
	Module string
	Op     string
	Reason string
	Err    error
}

// NewStateError creates a StateError.
func NewStateError(module, op string, err error, reason string) *StateError {
	return &StateError{
		Module: module,
		Op:     op,
		Reason: reason,
		Err:    err,
	}
}

func (e *StateError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s.%s rejected: %v", e.Module, e.Op, e.Err)
	}
	return fmt.Sprintf("%s.%s rejected: %v (%s)", e.Module, e.Op, e.Err, e.Reason)
}

func (e *StateError) Unwrap() error {
	return e.Err
}
