package validation

import (
	"reflect"
	"strconv"
	"time"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
)

// ValidateNotNil validates that a value is neither a nil interface nor a
// typed nil func, pointer, map, chan, slice or interface.
func ValidateNotNil(module, field string, value interface{}) error {
	if isNil(value) {
		return sferrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// ValidateNonNegativeDuration validates that a duration is zero or positive.
// Zero conventionally disables the feature the duration configures.
func ValidateNonNegativeDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return sferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable or a positive duration")
	}
	return nil
}

// ValidatePositiveDuration validates that a duration is strictly positive.
func ValidatePositiveDuration(module, field string, value time.Duration) error {
	if value <= 0 {
		return sferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return sferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateMaxLength validates that a string is at most max bytes long.
func ValidateMaxLength(module, field string, value string, max int) error {
	if len(value) > max {
		return sferrors.NewValidationError(module, field, value, "too long").
			WithHint("use at most " + strconv.Itoa(max) + " characters")
	}
	return nil
}
