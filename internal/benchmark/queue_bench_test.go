package benchmark

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/stepflow/pkg/logging"
	"github.com/vnykmshr/stepflow/pkg/metrics"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

func newQueue(b *testing.B, steps int, async bool) *taskqueue.Queue {
	b.Helper()
	q, err := taskqueue.NewWithConfig(taskqueue.Config{Logger: logging.Nop(), Mode: "production"})
	if err != nil {
		b.Fatalf("failed to create queue: %v", err)
	}
	for i := 0; i < steps; i++ {
		if async {
			_, err = q.AddAsync("", func(h *taskqueue.Handle) { go h.Done() })
		} else {
			_, err = q.Add("", func(*taskqueue.Handle) {})
		}
		if err != nil {
			b.Fatalf("failed to add step: %v", err)
		}
	}
	return q
}

func stepLabel(n int) string {
	return fmt.Sprintf("steps-%d", n)
}

// BenchmarkQueueRun measures a full parallel run of synchronous steps.
func BenchmarkQueueRun(b *testing.B) {
	for _, steps := range []int{1, 10, 100} {
		b.Run(stepLabel(steps), func(b *testing.B) {
			q := newQueue(b, steps, false)
			defer q.Close()
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := q.RunAndWait(ctx, false); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkQueueRunSequential measures hand-over cost between steps.
func BenchmarkQueueRunSequential(b *testing.B) {
	for _, steps := range []int{1, 10, 100} {
		b.Run(stepLabel(steps), func(b *testing.B) {
			q := newQueue(b, steps, true)
			defer q.Close()
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := q.RunAndWait(ctx, true); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkQueueRunWithObservers adds event subscribers to each run.
func BenchmarkQueueRunWithObservers(b *testing.B) {
	q := newQueue(b, 10, false)
	defer q.Close()

	var events int64
	for i := 0; i < 4; i++ {
		q.OnAny(func(taskqueue.Event) { atomic.AddInt64(&events, 1) })
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := q.RunAndWait(ctx, false); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQueueRunWithMetrics measures the cost of Prometheus instrumentation.
func BenchmarkQueueRunWithMetrics(b *testing.B) {
	q := newQueue(b, 10, false)
	defer q.Close()
	if err := q.EnableMetrics("bench", metrics.Config{Enabled: true, Registry: prometheus.NewRegistry()}); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := q.RunAndWait(ctx, false); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQueueAddRemove measures registration churn on an idle queue.
func BenchmarkQueueAddRemove(b *testing.B) {
	q := newQueue(b, 50, false)
	defer q.Close()
	fn := func(*taskqueue.Handle) {}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := q.Add("churn", fn)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := q.RemoveNumber(s.Number()); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQueueGet compares name and number lookups.
func BenchmarkQueueGet(b *testing.B) {
	q := newQueue(b, 100, false)
	defer q.Close()

	b.Run("number", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = q.GetNumber(50)
		}
	})
	b.Run("name", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = q.Get("Step 50")
		}
	})
}
