package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/vnykmshr/stepflow/pkg/logging"
	"github.com/vnykmshr/stepflow/pkg/scheduling/scheduler"
)

type nopRunner struct{}

func (nopRunner) Run() error           { return nil }
func (nopRunner) RunSequential() error { return nil }

// BenchmarkSchedulerSchedule measures job registration.
func BenchmarkSchedulerSchedule(b *testing.B) {
	s, err := scheduler.NewWithConfig(scheduler.Config{MaxJobs: b.N + 1, Logger: logging.Nop()})
	if err != nil {
		b.Fatal(err)
	}
	job := scheduler.Job{Queue: nopRunner{}}
	at := time.Now().Add(time.Hour)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Schedule(fmt.Sprintf("job-%d", i), job, at); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkNextRuns measures cron expression evaluation.
func BenchmarkNextRuns(b *testing.B) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := scheduler.NextRuns("0 */5 9-17 * * MON-FRI", from, 10); err != nil {
			b.Fatal(err)
		}
	}
}
