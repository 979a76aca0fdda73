package context

import (
	"context"
	"errors"
	"testing"
	"time"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
)

func TestWithOptionalTimeout(t *testing.T) {
	t.Run("zero timeout never expires on its own", func(t *testing.T) {
		ctx, cancel := WithOptionalTimeout(context.Background(), 0)
		defer cancel()

		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline")
		}
		if IsCanceled(ctx) {
			t.Error("context should not be canceled yet")
		}
		cancel()
		if !IsCanceled(ctx) {
			t.Error("context should be canceled after cancel()")
		}
	})

	t.Run("positive timeout expires", func(t *testing.T) {
		ctx, cancel := WithOptionalTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		<-ctx.Done()
		if !IsTimedOut(ctx) {
			t.Errorf("expected deadline exceeded, got %v", ctx.Err())
		}
	})
}

func TestWaitError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	if err := WaitError(ctx, "run"); !errors.Is(err, sferrors.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	if err := WaitError(ctx2, "run"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
