package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "resource is closed"},
		{"ErrTimeout", ErrTimeout, "operation timed out"},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration, "invalid configuration"},
		{"ErrProcessing", ErrProcessing, "queue is processing"},
		{"ErrStepState", ErrStepState, "invalid step state"},
		{"ErrIndexOutOfRange", ErrIndexOutOfRange, "index out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err: &ValidationError{
				Module: "taskqueue",
				Field:  "timeout",
				Value:  -1,
				Reason: "cannot be negative",
			},
			want: "taskqueue: invalid timeout=-1 (cannot be negative)",
		},
		{
			name: "with hint",
			err: &ValidationError{
				Module: "taskqueue",
				Field:  "callback",
				Value:  nil,
				Reason: "cannot be nil",
				Hint:   "provide a valid callback",
			},
			want: "taskqueue: invalid callback=<nil> (cannot be nil) - provide a valid callback",
		},
		{
			name: "string value",
			err: &ValidationError{
				Module: "scheduler",
				Field:  "cron",
				Value:  "",
				Reason: "cannot be empty",
			},
			want: "scheduler: invalid cron= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	verr := NewValidationError("test", "field", 0, "test")

	if !errors.Is(verr, ErrInvalidConfiguration) {
		t.Error("ValidationError should wrap ErrInvalidConfiguration")
	}

	wrapped := fmt.Errorf("add step: %w", verr)
	if !IsValidationError(wrapped) {
		t.Error("IsValidationError should see through wrapping")
	}
}

func TestValidationError_WithHint(t *testing.T) {
	err := NewValidationError("test", "field", 0, "invalid").
		WithHint("try using a positive value")

	if err.Hint != "try using a positive value" {
		t.Errorf("Hint = %q, want %q", err.Hint, "try using a positive value")
	}

	if result := err.WithHint("new hint"); result != err {
		t.Error("WithHint should return the same instance")
	}
}

func TestStateError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StateError
		want     string
		sentinel error
	}{
		{
			name:     "without reason",
			err:      NewStateError("taskqueue", "Add", ErrProcessing, ""),
			want:     "taskqueue.Add rejected: queue is processing",
			sentinel: ErrProcessing,
		},
		{
			name:     "with reason",
			err:      NewStateError("taskqueue", "RemoveAt", ErrIndexOutOfRange, "index 5, length 2"),
			want:     "taskqueue.RemoveAt rejected: index out of range (index 5, length 2)",
			sentinel: ErrIndexOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("StateError should wrap %v", tt.sentinel)
			}
			if !IsStateError(tt.err) {
				t.Error("IsStateError should be true")
			}
			if IsValidationError(tt.err) {
				t.Error("IsValidationError should be false")
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewStateError("taskqueue", "Run", ErrProcessing, "")) {
		t.Error("processing rejection should be retryable")
	}
	if !IsRetryable(ErrTimeout) {
		t.Error("timeout should be retryable")
	}
	if IsRetryable(ErrClosed) {
		t.Error("closed should not be retryable")
	}
}
