package taskqueue

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
)

// Func is a unit of work that is complete as soon as it returns.
type Func func(h *Handle)

// AsyncFunc is a unit of work that is complete only once it calls h.Done,
// which it may do from any goroutine after returning. An AsyncFunc that never
// calls Done never completes.
type AsyncFunc func(h *Handle)

// Step is one registered unit of work. Steps are created by Queue.Add and
// Queue.AddAsync and are safe for concurrent use.
type Step struct {
	name     string
	number   int
	callback func(*Handle)
	async    bool
	queue    *Queue

	mu        sync.Mutex
	status    Status
	skip      bool
	timer     *time.Timer
	run       *runState
	settled   chan struct{}
	announced bool // settled has been closed for the current run
	startedAt time.Time
}

func newStep(q *Queue, name string, number int, fn func(*Handle), async bool) *Step {
	settled := make(chan struct{})
	return &Step{
		name:     name,
		number:   number,
		callback: fn,
		async:    async,
		queue:    q,
		settled:  settled,
	}
}

// Name returns the step's label.
func (s *Step) Name() string { return s.name }

// Number returns the step's registration number.
func (s *Step) Number() int { return s.number }

// Async reports whether the step was registered with AddAsync.
func (s *Step) Async() bool { return s.async }

// Status returns the step's status in the current or most recent run.
func (s *Step) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Skipped reports whether a skip has been requested for the step.
func (s *Step) Skipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip
}

// Info returns a snapshot of the step.
func (s *Step) Info() StepInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StepInfo{Number: s.number, Name: s.name, Status: s.status}
}

func (s *Step) String() string {
	return fmt.Sprintf("#%d %s", s.number, s.name)
}

// Skip requests that the step not run. A step that is running, complete or
// timed out cannot be skipped: Skip logs a warning and returns a StateError.
func (s *Step) Skip() error {
	s.mu.Lock()
	status := s.status
	switch status {
	case StatusRunning, StatusComplete, StatusTimedOut:
		s.mu.Unlock()
		s.queue.logger.Warn("cannot skip step",
			"step", s.name, "number", s.number, "status", status.String())
		return sferrors.NewStateError("taskqueue", "Skip", sferrors.ErrStepState,
			fmt.Sprintf("step %q is %s", s.name, status))
	}
	s.skip = true
	s.mu.Unlock()
	return nil
}

// Abort skips the step and, when no run is in flight, settles a pending step
// as skipped immediately, publishing EventStepSkipped and EventStepComplete.
// During a run a pending step is left for the run to pass over.
func (s *Step) Abort() error {
	if err := s.Skip(); err != nil {
		return err
	}

	// The queue lock keeps a new run from preparing the step between the
	// processing check and the status change.
	q := s.queue
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return nil
	}
	s.mu.Lock()
	if s.status != StatusPending {
		s.mu.Unlock()
		q.mu.Unlock()
		return nil
	}
	s.status = StatusSkipped
	s.closeSettledLocked()
	s.mu.Unlock()
	q.mu.Unlock()

	info := s.Info()
	s.queue.publish(Event{Kind: EventStepSkipped, Step: info})
	s.queue.publish(Event{Kind: EventStepComplete, Step: info})
	return nil
}

// prepare binds the step to a new run. Called with the queue lock held.
func (s *Step) prepare(r *runState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.status = StatusPending
	s.run = r
	s.settled = make(chan struct{})
	s.announced = false
	s.startedAt = time.Time{}
}

// settledChan returns the channel closed when the step settles in run r.
func (s *Step) settledChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// begin moves a pending step to running, or to skipped when a skip was
// requested. It reports whether the callback should be invoked.
func (s *Step) begin(r *runState) bool {
	s.mu.Lock()
	if s.run != r || s.status != StatusPending {
		s.mu.Unlock()
		return false
	}

	if s.skip {
		s.status = StatusSkipped
		s.mu.Unlock()
		s.queue.stepSkipped(s, r)
		return false
	}

	s.status = StatusRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.queue.stepStarted(s, r)
	return true
}

// call invokes the callback. A synchronous step completes when it returns;
// a panicking callback is logged and treated as complete.
func (s *Step) call(r *runState) {
	h := &Handle{step: s, run: r}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.queue.logger.Error("step panicked",
					"step", s.name,
					"number", s.number,
					"run_id", r.id.String(),
					"panic", rec,
					"stack", string(debug.Stack()))
				s.complete(r)
			}
		}()
		s.callback(h)
	}()

	if !s.async {
		s.complete(r)
	}
}

// complete records completion for run r. Completion is applied once per run;
// duplicates and calls from a previous run are ignored.
func (s *Step) complete(r *runState) {
	s.mu.Lock()
	if s.run != r || s.status == StatusPending || s.status.settled() {
		s.mu.Unlock()
		return
	}
	s.status = StatusComplete
	s.stopTimerLocked()
	elapsed := time.Since(s.startedAt)
	s.mu.Unlock()

	s.queue.stepCompleted(s, r, elapsed)
}

// armTimeout starts or restarts the step's own advisory timer.
func (s *Step) armTimeout(r *runState, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != r || s.status != StatusRunning {
		return
	}
	s.stopTimerLocked()
	s.timer = time.AfterFunc(d, func() { s.expire(r) })
}

func (s *Step) expire(r *runState) {
	s.mu.Lock()
	if s.run != r || s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.status = StatusTimedOut
	s.timer = nil
	elapsed := time.Since(s.startedAt)
	s.mu.Unlock()

	s.queue.stepTimedOut(s, r, elapsed)
}

// markSettled closes the settled channel for run r once.
func (s *Step) markSettled(r *runState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == r {
		s.closeSettledLocked()
	}
}

func (s *Step) closeSettledLocked() {
	if !s.announced {
		s.announced = true
		close(s.settled)
	}
}

func (s *Step) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

func (s *Step) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Handle is passed to a step's callback for the duration of one run.
type Handle struct {
	step *Step
	run  *runState
}

// Done signals completion of an AsyncFunc. Calling Done more than once, or
// from a synchronous Func that has already returned, has no effect.
func (h *Handle) Done() {
	h.step.complete(h.run)
}

// SetTimeout arms the step's own timer. When it fires while the step is still
// running the step is marked StatusTimedOut and EventStepTimeout is published.
// The callback is not interrupted and may still call Done.
func (h *Handle) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	h.step.armTimeout(h.run, d)
}

// Name returns the step's label.
func (h *Handle) Name() string { return h.step.name }

// Number returns the step's registration number.
func (h *Handle) Number() int { return h.step.number }

// Status returns the step's current status.
func (h *Handle) Status() Status { return h.step.Status() }

// Skipped reports whether a skip has been requested for the step.
func (h *Handle) Skipped() bool { return h.step.Skipped() }

// RunID identifies the run the step is executing in.
func (h *Handle) RunID() uuid.UUID { return h.run.id }

// Logger returns the queue logger annotated with the step and run.
func (h *Handle) Logger() *slog.Logger {
	return h.step.queue.logger.With(
		"step", h.step.name,
		"number", h.step.number,
		"run_id", h.run.id.String())
}
