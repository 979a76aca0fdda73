// Package validation provides common validation utilities for configuration
// parameters across the stepflow library.
//
// Every validator returns a *errors.ValidationError so callers can match
// configuration failures with errors.Is(err, errors.ErrInvalidConfiguration).
package validation
