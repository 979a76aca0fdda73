// Package context provides helpers for bounding waits on queue runs.
package context

import (
	"context"
	"errors"
	"fmt"
	"time"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
)

// WithOptionalTimeout derives a context that expires after timeout.
// A zero or negative timeout yields a context that is only canceled with
// its parent or the returned CancelFunc.
func WithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut returns true if the context was canceled due to a timeout
func IsTimedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// WaitError converts the error of an expired wait context into the library
// taxonomy: deadlines become ErrTimeout, cancellation is passed through.
func WaitError(ctx context.Context, what string) error {
	if IsTimedOut(ctx) {
		return fmt.Errorf("waiting for %s: %w", what, sferrors.ErrTimeout)
	}
	return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
}
