package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/stepflow/pkg/common/errors"
)

func TestValidateNotNil(t *testing.T) {
	var nilFunc func()
	var nilMap map[string]int

	tests := []struct {
		name      string
		value     interface{}
		wantError bool
	}{
		{"non-nil int", 123, false},
		{"non-nil string", "value", false},
		{"non-nil struct", struct{}{}, false},
		{"non-nil pointer", new(int), false},
		{"non-nil func", func() {}, false},
		{"empty slice", []int{}, false},
		{"nil value", nil, true},
		{"nil pointer", (*int)(nil), true},
		{"nil func", nilFunc, true},
		{"nil map", nilMap, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotNil("test", "callback", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		wantError bool
	}{
		{"zero disables", 0, false},
		{"positive", time.Second, false},
		{"one nanosecond", 1, false},
		{"negative", -time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegativeDuration("test", "timeout", tt.value)
			if tt.wantError != (err != nil) {
				t.Errorf("wantError=%v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestValidatePositiveDuration(t *testing.T) {
	if err := ValidatePositiveDuration("test", "interval", time.Second); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := ValidatePositiveDuration("test", "interval", 0); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestValidateNotEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"non-empty string", "value", false},
		{"single char", "a", false},
		{"whitespace", " ", false}, // Whitespace is not empty
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotEmpty("test", "name", tt.value)
			if tt.wantError != (err != nil) {
				t.Errorf("wantError=%v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestValidateMaxLength(t *testing.T) {
	if err := ValidateMaxLength("scheduler", "id", "short", 255); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	err := ValidateMaxLength("scheduler", "id", strings.Repeat("x", 256), 255)
	if err == nil {
		t.Fatal("expected error for long id")
	}
	if !strings.Contains(err.Error(), "use at most 255 characters") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidateNonNegativeDuration("taskqueue", "timeout", -5*time.Second)
	if err == nil {
		t.Fatal("expected error")
	}

	valErr, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("could not cast to ValidationError: %T", err)
	}
	if valErr.Module != "taskqueue" || valErr.Field != "timeout" {
		t.Errorf("unexpected module/field: %s/%s", valErr.Module, valErr.Field)
	}
	if valErr.Hint == "" {
		t.Error("expected a hint")
	}
}
