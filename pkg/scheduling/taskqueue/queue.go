package taskqueue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ctxutil "github.com/vnykmshr/stepflow/pkg/common/context"
	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
	"github.com/vnykmshr/stepflow/pkg/common/validation"
	"github.com/vnykmshr/stepflow/pkg/logging"
)

const module = "taskqueue"

// Config holds queue configuration.
type Config struct {
	// Mode selects diagnostic verbosity. Values starting with "dev" are
	// verbose. Empty means the STEPFLOW_ENV environment variable, then
	// "production".
	Mode string

	// Timeout is the queue-wide advisory deadline for a run. Zero disables it.
	Timeout time.Duration

	// Logger receives diagnostics. Defaults to text on stderr.
	Logger *slog.Logger
}

// runState is the state of one run. A fresh value is created by every Run
// call and is never shared between queues.
type runState struct {
	id         uuid.UUID
	sequential bool
	steps      []*Step
	completed  int
	aborted    bool
	finished   bool
	timer      *time.Timer
	started    time.Time
	done       chan struct{}
}

// Queue is an ordered collection of steps that can be run in parallel or in
// sequence. All methods are safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	steps      []*Step
	timeout    time.Duration
	processing bool
	cancelled  bool
	closed     bool
	current    *runState
	closedCh   chan struct{}

	mode      atomic.Int32
	logger    *slog.Logger
	observers *observers

	metricsMu sync.Mutex
	metrics   *queueMetrics
}

// New creates a queue with default configuration.
func New() *Queue {
	q, _ := NewWithConfig(Config{})
	return q
}

// NewWithConfig creates a queue with custom configuration.
func NewWithConfig(cfg Config) (*Queue, error) {
	if err := validation.ValidateNonNegativeDuration(module, "timeout", cfg.Timeout); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	mode := cfg.Mode
	if mode == "" {
		mode = logging.EnvOrDefault()
	}

	q := &Queue{
		timeout:   cfg.Timeout,
		closedCh:  make(chan struct{}),
		logger:    logger,
		observers: &observers{logger: logger},
	}
	q.mode.Store(int32(logging.ParseMode(mode)))
	return q, nil
}

// Mode returns the diagnostic verbosity.
func (q *Queue) Mode() logging.Mode {
	return logging.Mode(q.mode.Load())
}

// SetMode sets diagnostic verbosity: values starting with "dev"
// (case-insensitive) are verbose, anything else is quiet.
func (q *Queue) SetMode(value string) {
	q.mode.Store(int32(logging.ParseMode(value)))
}

func (q *Queue) verbose() bool {
	return q.Mode() == logging.ModeVerbose
}

// Timeout returns the queue-wide deadline; zero means none.
func (q *Queue) Timeout() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.timeout
}

// SetTimeout sets the queue-wide deadline applied to subsequent runs.
// Zero disables it.
func (q *Queue) SetTimeout(d time.Duration) error {
	if err := validation.ValidateNonNegativeDuration(module, "timeout", d); err != nil {
		return err
	}
	q.mu.Lock()
	q.timeout = d
	q.mu.Unlock()
	return nil
}

// Processing reports whether a run is in flight.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Cancelled reports whether Abort was called since the last run started.
func (q *Queue) Cancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

// Completed returns how many steps have settled in the current or most
// recent parallel run.
func (q *Queue) Completed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return 0
	}
	return q.current.completed
}

// Len returns the number of registered steps.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steps)
}

// Steps returns the registered steps in queue order.
func (q *Queue) Steps() []*Step {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Step(nil), q.steps...)
}

// List returns a snapshot of every step in queue order.
func (q *Queue) List() []StepInfo {
	steps := q.Steps()
	out := make([]StepInfo, len(steps))
	for i, s := range steps {
		out[i] = s.Info()
	}
	return out
}

// On subscribes h to events of the given kind and returns a subscription ID.
func (q *Queue) On(kind EventKind, h Handler) string {
	return q.observers.subscribe(kind, h)
}

// OnAny subscribes h to every event.
func (q *Queue) OnAny(h Handler) string {
	return q.observers.subscribe(0, h)
}

// Off removes a subscription. It reports whether the ID was found.
func (q *Queue) Off(id string) bool {
	return q.observers.unsubscribe(id)
}

func (q *Queue) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	q.observers.publish(ev)
}

// reject logs a warning for an operation refused because of queue state and
// returns the matching StateError.
func (q *Queue) reject(op string, err error, reason string) error {
	q.logger.Warn("operation rejected", "op", op, "reason", reason)
	return sferrors.NewStateError(module, op, err, reason)
}

// Add appends a synchronous step. An empty name defaults to "Step N".
func (q *Queue) Add(name string, fn Func) (*Step, error) {
	if err := validation.ValidateNotNil(module, "callback", fn); err != nil {
		return nil, err
	}
	return q.add("Add", name, fn, false)
}

// AddAsync appends a step that completes when it calls Handle.Done.
func (q *Queue) AddAsync(name string, fn AsyncFunc) (*Step, error) {
	if err := validation.ValidateNotNil(module, "callback", fn); err != nil {
		return nil, err
	}
	return q.add("AddAsync", name, fn, true)
}

func (q *Queue) add(op, name string, fn func(*Handle), async bool) (*Step, error) {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return nil, q.reject(op, sferrors.ErrProcessing, "cannot add a step while processing")
	}

	if name == "" {
		name = "Step " + strconv.Itoa(len(q.steps)+1)
	}
	number := 1
	if n := len(q.steps); n > 0 {
		number = q.steps[n-1].number + 1
	}

	s := newStep(q, name, number, fn, async)
	q.steps = append(q.steps, s)
	q.mu.Unlock()

	q.publish(Event{Kind: EventStepAdded, Step: s.Info()})
	return s, nil
}

// GetAt returns the step at position index. An out-of-range index is logged
// as a warning.
func (q *Queue) GetAt(index int) (*Step, bool) {
	q.mu.Lock()
	n := len(q.steps)
	if index >= 0 && index < n {
		s := q.steps[index]
		q.mu.Unlock()
		return s, true
	}
	q.mu.Unlock()

	q.logger.Warn("step index could not be found", "op", "GetAt", "index", index, "length", n)
	return nil, false
}

// Get looks a step up by name, then by number when key is numeric. A lookup
// only succeeds when exactly one step matches. A numeric name shadows the
// step whose number it spells.
func (q *Queue) Get(key string) (*Step, bool) {
	steps := q.Steps()
	if i := findIndex(steps, key); i >= 0 {
		return steps[i], true
	}
	return nil, false
}

// GetNumber looks a step up by registration number.
func (q *Queue) GetNumber(number int) (*Step, bool) {
	steps := q.Steps()
	if i := uniqueIndex(steps, func(s *Step) bool { return s.number == number }); i >= 0 {
		return steps[i], true
	}
	return nil, false
}

// Remove removes the step matched as in Get and returns it. When nothing
// matches it returns nil and a nil error.
func (q *Queue) Remove(key string) (*Step, error) {
	return q.removeMatch("Remove", func(steps []*Step) int {
		return findIndex(steps, key)
	})
}

// RemoveNumber removes the step with the given registration number.
func (q *Queue) RemoveNumber(number int) (*Step, error) {
	return q.removeMatch("RemoveNumber", func(steps []*Step) int {
		return uniqueIndex(steps, func(s *Step) bool { return s.number == number })
	})
}

// RemoveAt removes the step at position index. An out-of-range index is
// logged and leaves the queue unchanged.
func (q *Queue) RemoveAt(index int) (*Step, error) {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return nil, q.reject("RemoveAt", sferrors.ErrProcessing, "cannot remove a step while processing")
	}
	if index < 0 || index >= len(q.steps) {
		n := len(q.steps)
		q.mu.Unlock()
		q.logger.Error("step index could not be found", "index", index, "length", n)
		return nil, sferrors.NewStateError(module, "RemoveAt", sferrors.ErrIndexOutOfRange,
			fmt.Sprintf("index %d, length %d", index, n))
	}
	s := q.removeLocked(index)
	q.mu.Unlock()

	q.publish(Event{Kind: EventStepRemoved, Step: s.Info()})
	return s, nil
}

func (q *Queue) removeMatch(op string, match func([]*Step) int) (*Step, error) {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return nil, q.reject(op, sferrors.ErrProcessing, "cannot remove a step while processing")
	}
	i := match(q.steps)
	if i < 0 {
		q.mu.Unlock()
		return nil, nil
	}
	s := q.removeLocked(i)
	q.mu.Unlock()

	q.publish(Event{Kind: EventStepRemoved, Step: s.Info()})
	return s, nil
}

func (q *Queue) removeLocked(i int) *Step {
	s := q.steps[i]
	q.steps = append(q.steps[:i:i], q.steps[i+1:]...)
	s.stopTimer()
	return s
}

func findIndex(steps []*Step, key string) int {
	if i := uniqueIndex(steps, func(s *Step) bool { return s.name == key }); i >= 0 {
		return i
	}
	if n, err := strconv.Atoi(key); err == nil {
		return uniqueIndex(steps, func(s *Step) bool { return s.number == n })
	}
	return -1
}

// uniqueIndex returns the index of the only step matching, or -1 when zero
// or several steps match.
func uniqueIndex(steps []*Step, match func(*Step) bool) int {
	found := -1
	for i, s := range steps {
		if match(s) {
			if found >= 0 {
				return -1
			}
			found = i
		}
	}
	return found
}

// Reset clears skip requests on every step so an aborted queue can run again.
func (q *Queue) Reset() error {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return q.reject("Reset", sferrors.ErrProcessing,
			"abort or wait for the run to complete before resetting")
	}
	steps := append([]*Step(nil), q.steps...)
	q.cancelled = false
	q.mu.Unlock()

	for _, s := range steps {
		s.mu.Lock()
		s.skip = false
		s.mu.Unlock()
	}
	return nil
}

// Run starts every step in registration order without waiting for any of
// them, each callback on its own goroutine. It returns once all steps have
// been started; use Wait or EventComplete to observe completion.
func (q *Queue) Run() error {
	_, err := q.start("Run", false)
	return err
}

// RunSequential runs steps one at a time in registration order, starting each
// only after the previous one completed or was skipped. It returns
// immediately; the steps run on a separate goroutine.
func (q *Queue) RunSequential() error {
	_, err := q.start("RunSequential", true)
	return err
}

// RunAndWait starts a run and blocks until it completes or ctx is done.
func (q *Queue) RunAndWait(ctx context.Context, sequential bool) error {
	op := "Run"
	if sequential {
		op = "RunSequential"
	}
	r, err := q.start(op, sequential)
	if err != nil {
		return err
	}
	return q.waitRun(ctx, r)
}

// Wait blocks until the current or most recent run completes, ctx is done,
// or the queue is closed. It returns nil immediately if the queue never ran.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	r := q.current
	q.mu.Unlock()
	if r == nil {
		return nil
	}
	return q.waitRun(ctx, r)
}

func (q *Queue) waitRun(ctx context.Context, r *runState) error {
	select {
	case <-r.done:
		return nil
	default:
	}

	select {
	case <-r.done:
		return nil
	case <-q.closedCh:
		return sferrors.NewStateError(module, "Wait", sferrors.ErrClosed, "queue closed during run")
	case <-ctx.Done():
		return ctxutil.WaitError(ctx, "queue run")
	}
}

func (q *Queue) start(op string, sequential bool) (*runState, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, sferrors.NewStateError(module, op, sferrors.ErrClosed, "")
	}
	if q.processing {
		q.mu.Unlock()
		return nil, q.reject(op, sferrors.ErrProcessing,
			"already running; wait for the current run to complete")
	}

	r := &runState{
		id:         uuid.New(),
		sequential: sequential,
		steps:      append([]*Step(nil), q.steps...),
		started:    time.Now(),
		done:       make(chan struct{}),
	}
	q.current = r
	q.cancelled = false

	if len(r.steps) == 0 {
		r.finished = true
		q.mu.Unlock()
		q.publish(Event{Kind: EventComplete, RunID: r.id, Sequential: sequential})
		close(r.done)
		return r, nil
	}

	q.processing = true
	for _, s := range r.steps {
		s.prepare(r)
	}
	if q.timeout > 0 {
		r.timer = time.AfterFunc(q.timeout, func() { q.onTimeout(r) })
	}
	q.mu.Unlock()

	if q.verbose() {
		q.logger.Info("run started",
			"run_id", r.id.String(), "steps", len(r.steps), "sequential", sequential)
	}

	if sequential {
		go q.drive(r)
		return r, nil
	}

	for _, s := range r.steps {
		if s.begin(r) {
			go s.call(r)
		}
	}
	return r, nil
}

// drive executes a sequential run, advancing only when the current step
// settles. It exits early if the queue is closed.
func (q *Queue) drive(r *runState) {
	for _, s := range r.steps {
		settled := s.settledChan()
		if s.begin(r) {
			s.call(r)
		}
		select {
		case <-settled:
		case <-q.closedCh:
			return
		}
	}
	q.finish(r)
}

func (q *Queue) stepStarted(s *Step, r *runState) {
	info := s.Info()
	if q.verbose() {
		q.logger.Info("executing step", "step", info.Name, "number", info.Number, "run_id", r.id.String())
	}
	q.publish(Event{Kind: EventStepStarted, RunID: r.id, Sequential: r.sequential, Step: info})
}

func (q *Queue) stepSkipped(s *Step, r *runState) {
	info := s.Info()
	if q.verbose() {
		q.logger.Info("step skipped", "step", info.Name, "number", info.Number, "run_id", r.id.String())
	}
	q.publish(Event{Kind: EventStepSkipped, RunID: r.id, Sequential: r.sequential, Step: info})
	q.publish(Event{Kind: EventStepComplete, RunID: r.id, Sequential: r.sequential, Step: info})
	q.settle(s, r)
}

func (q *Queue) stepCompleted(s *Step, r *runState, elapsed time.Duration) {
	info := s.Info()
	if q.verbose() {
		q.logger.Info("step completed",
			"step", info.Name, "number", info.Number, "run_id", r.id.String(), "duration", elapsed)
	}
	q.publish(Event{Kind: EventStepComplete, RunID: r.id, Sequential: r.sequential, Step: info, Duration: elapsed})
	q.settle(s, r)
}

func (q *Queue) stepTimedOut(s *Step, r *runState, elapsed time.Duration) {
	info := s.Info()
	q.logger.Warn("step timed out",
		"step", info.Name, "number", info.Number, "run_id", r.id.String(), "elapsed", elapsed)
	q.publish(Event{Kind: EventStepTimeout, RunID: r.id, Sequential: r.sequential, Step: info, Duration: elapsed})
}

// settle records that s reached a terminal status. Sequential runs advance
// through the settled channel; parallel runs tally and finish on the last one.
func (q *Queue) settle(s *Step, r *runState) {
	s.markSettled(r)
	if r.sequential {
		return
	}

	q.mu.Lock()
	if r.finished {
		q.mu.Unlock()
		return
	}
	r.completed++
	last := r.completed == len(r.steps)
	q.mu.Unlock()

	if last {
		q.finish(r)
	}
}

// finish publishes completion for r exactly once.
func (q *Queue) finish(r *runState) {
	q.mu.Lock()
	if r.finished {
		q.mu.Unlock()
		return
	}
	r.finished = true
	if r.timer != nil {
		r.timer.Stop()
	}
	if q.current == r {
		q.processing = false
	}
	aborted := r.aborted
	q.mu.Unlock()

	for _, s := range r.steps {
		s.stopTimer()
	}

	elapsed := time.Since(r.started)
	if q.verbose() {
		q.logger.Info("run complete",
			"run_id", r.id.String(), "duration", elapsed, "aborted", aborted)
	}
	q.publish(Event{Kind: EventComplete, RunID: r.id, Sequential: r.sequential, Duration: elapsed})
	if aborted {
		q.publish(Event{Kind: EventAborted, RunID: r.id, Sequential: r.sequential, Duration: elapsed})
	}
	close(r.done)
}

// onTimeout reports the queue-wide deadline. It does not stop any step.
func (q *Queue) onTimeout(r *runState) {
	q.mu.Lock()
	if r.finished || q.closed {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	entries := make([]LogEntry, 0, len(r.steps))
	for _, s := range r.steps {
		info := s.Info()
		entries = append(entries, LogEntry{Name: info.Name, Status: info.Status.Label()})
	}

	elapsed := time.Since(r.started)
	q.logger.Warn("queue timed out", "run_id", r.id.String(), "elapsed", elapsed)
	q.publish(Event{
		Kind:       EventTimeout,
		RunID:      r.id,
		Sequential: r.sequential,
		Log:        entries,
		Duration:   elapsed,
	})
}

// Abort prevents steps that have not started from running. Running steps are
// left to finish; the run's EventComplete is followed by EventAborted. On an
// idle queue pending steps are settled as skipped at once and EventComplete
// and EventAborted are published immediately.
func (q *Queue) Abort() {
	q.mu.Lock()
	r := q.current
	processing := q.processing
	q.cancelled = true
	if processing {
		r.aborted = true
	}
	steps := append([]*Step(nil), q.steps...)
	q.mu.Unlock()

	var runID uuid.UUID
	if processing {
		runID = r.id
	}
	q.logger.Warn("aborting queue", "run_id", runID.String(), "processing", processing)
	q.publish(Event{Kind: EventAborting, RunID: runID})

	if processing {
		for _, s := range steps {
			_ = s.Skip()
		}
		return
	}

	for _, s := range steps {
		_ = s.Abort()
	}
	q.publish(Event{Kind: EventComplete})
	q.publish(Event{Kind: EventAborted})
}

// Close discards the queue: timers are stopped, a sequential run waiting on
// a step that never completes is released, and further runs are rejected.
// Callbacks that are still executing are not interrupted.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.closedCh)
	if q.current != nil && q.current.timer != nil {
		q.current.timer.Stop()
	}
	q.processing = false
	steps := append([]*Step(nil), q.steps...)
	q.mu.Unlock()

	for _, s := range steps {
		s.stopTimer()
	}
}
