package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
	"github.com/vnykmshr/stepflow/pkg/common/validation"
	"github.com/vnykmshr/stepflow/pkg/logging"
	"github.com/vnykmshr/stepflow/pkg/metrics"
)

const module = "scheduler"

// maxIDLength bounds job identifiers.
const maxIDLength = 255

var (
	// ErrJobExists is returned when scheduling under an ID that is already in use.
	ErrJobExists = errors.New("job already exists")

	// ErrTooManyJobs is returned when the scheduler is at Config.MaxJobs.
	ErrTooManyJobs = errors.New("maximum number of jobs reached")
)

// Runner starts a run without waiting for it. *taskqueue.Queue satisfies it.
type Runner interface {
	Run() error
	RunSequential() error
}

// Job is a queue run to trigger.
type Job struct {
	Queue      Runner
	Sequential bool
}

func (j Job) trigger() error {
	if j.Sequential {
		return j.Queue.RunSequential()
	}
	return j.Queue.Run()
}

// Entry describes a scheduled job.
type Entry struct {
	ID         string
	NextRun    time.Time
	Interval   time.Duration // Zero for one-time and cron jobs
	Cron       string        // Empty unless scheduled with ScheduleCron
	Sequential bool
	Runs       int
	Created    time.Time
}

// Scheduler triggers queue runs at fixed times, intervals, or cron schedules.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, job Job, runAt time.Time) error
	ScheduleAfter(id string, job Job, delay time.Duration) error
	ScheduleRepeating(id string, job Job, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, job Job) error

	// Job management
	Cancel(id string) bool
	CancelAll()
	Get(id string) (Entry, bool)
	List() []Entry

	// Lifecycle
	Start() error
	Stop() <-chan struct{}

	metrics.Instrumentable
}

// Config holds scheduler configuration.
type Config struct {
	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for due jobs (default: 50ms)
	MaxJobs      int            // Maximum number of scheduled jobs (default: 10000)
	Logger       *slog.Logger

	// OnTriggered is called after a job's run was started.
	OnTriggered func(Entry)

	// OnError is called when the queue rejects a trigger, typically because
	// the previous run is still processing. The job stays scheduled.
	OnError func(Entry, error)
}

type scheduledJob struct {
	id       string
	job      Job
	runAt    time.Time
	interval time.Duration
	cronExpr string
	schedule cron.Schedule
	runs     int
	created  time.Time
}

func (j *scheduledJob) entry() Entry {
	return Entry{
		ID:         j.id,
		NextRun:    j.runAt,
		Interval:   j.interval,
		Cron:       j.cronExpr,
		Sequential: j.job.Sequential,
		Runs:       j.runs,
		Created:    j.created,
	}
}

type scheduler struct {
	location     *time.Location
	tickInterval time.Duration
	maxJobs      int
	logger       *slog.Logger
	onTriggered  func(Entry)
	onError      func(Entry, error)

	mu      sync.RWMutex
	jobs    map[string]*scheduledJob
	done    chan struct{}
	stopped chan struct{}
	running bool

	metricsMu   sync.RWMutex
	metricsName string
	registry    *metrics.Registry
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	s, _ := NewWithConfig(Config{})
	return s
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (Scheduler, error) {
	if err := validation.ValidateNonNegativeDuration(module, "tick interval", cfg.TickInterval); err != nil {
		return nil, err
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &scheduler{
		location:     location,
		tickInterval: tickInterval,
		maxJobs:      maxJobs,
		logger:       logger,
		onTriggered:  cfg.OnTriggered,
		onError:      cfg.OnError,
		jobs:         make(map[string]*scheduledJob),
	}, nil
}

// cronParser accepts six-field expressions with a leading seconds field.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron validates a six-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty(module, "cron expression", expr); err != nil {
		return nil, err
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, sferrors.NewValidationError(module, "cron expression", expr, err.Error()).
			WithHint("use six fields: second minute hour day-of-month month day-of-week")
	}
	return schedule, nil
}

// NextRuns returns the next n activation times of expr after from.
func NextRuns(expr string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}
		out = append(out, next)
	}
	return out, nil
}

func validateJob(id string, job Job) error {
	if err := validation.ValidateNotEmpty(module, "job ID", id); err != nil {
		return err
	}
	if err := validation.ValidateMaxLength(module, "job ID", id, maxIDLength); err != nil {
		return err
	}
	return validation.ValidateNotNil(module, "queue", job.Queue)
}

// add registers j unless its ID is taken or the scheduler is full.
func (s *scheduler) add(j *scheduledJob) error {
	s.mu.Lock()
	if _, exists := s.jobs[j.id]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %q: %w; cancel the existing job first", j.id, ErrJobExists)
	}
	if len(s.jobs) >= s.maxJobs {
		s.mu.Unlock()
		return fmt.Errorf("cannot schedule job %q: %w (%d)", j.id, ErrTooManyJobs, s.maxJobs)
	}
	s.jobs[j.id] = j
	active := len(s.jobs)
	next := j.runAt
	s.mu.Unlock()

	s.withMetrics(func(r *metrics.Registry, name string) {
		r.JobsScheduled.WithLabelValues(name).Inc()
		r.JobsActive.WithLabelValues(name).Set(float64(active))
	})
	s.logger.Debug("job scheduled", "job", j.id, "next_run", next)
	return nil
}

func (s *scheduler) Schedule(id string, job Job, runAt time.Time) error {
	if err := validateJob(id, job); err != nil {
		return err
	}
	if runAt.IsZero() {
		return sferrors.NewValidationError(module, "run time", runAt, "cannot be zero")
	}

	return s.add(&scheduledJob{
		id:      id,
		job:     job,
		runAt:   runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, job Job, delay time.Duration) error {
	if err := validation.ValidateNonNegativeDuration(module, "delay", delay); err != nil {
		return err
	}
	return s.Schedule(id, job, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, job Job, interval time.Duration) error {
	if err := validateJob(id, job); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration(module, "interval", interval); err != nil {
		return err
	}

	now := time.Now()
	return s.add(&scheduledJob{
		id:       id,
		job:      job,
		runAt:    now,
		interval: interval,
		created:  now,
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, job Job) error {
	if err := validateJob(id, job); err != nil {
		return err
	}
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return err
	}

	return s.add(&scheduledJob{
		id:       id,
		job:      job,
		runAt:    schedule.Next(time.Now().In(s.location)),
		cronExpr: cronExpr,
		schedule: schedule,
		created:  time.Now(),
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	_, exists := s.jobs[id]
	delete(s.jobs, id)
	active := len(s.jobs)
	s.mu.Unlock()

	if exists {
		s.withMetrics(func(r *metrics.Registry, name string) {
			r.JobsActive.WithLabelValues(name).Set(float64(active))
		})
	}
	return exists
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	s.jobs = make(map[string]*scheduledJob)
	s.mu.Unlock()

	s.withMetrics(func(r *metrics.Registry, name string) {
		r.JobsActive.WithLabelValues(name).Set(0)
	})
}

func (s *scheduler) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Entry{}, false
	}
	return j.entry(), true
}

func (s *scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.jobs))
	for _, j := range s.jobs {
		entries = append(entries, j.entry())
	}

	// Sort by next run, then ID for stable output
	sort.Slice(entries, func(i, k int) bool {
		if entries[i].NextRun.Equal(entries[k].NextRun) {
			return entries[i].ID < entries[k].ID
		}
		return entries[i].NextRun.Before(entries[k].NextRun)
	})

	return entries
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(s.done, s.stopped)
	return nil
}

// Stop halts triggering. The returned channel is closed once the scheduling
// loop has exited; runs already started continue on their queues.
func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	s.running = false
	close(s.done)
	return s.stopped
}

func (s *scheduler) run(done, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			s.processDueJobs(now)
		}
	}
}

func (s *scheduler) processDueJobs(now time.Time) {
	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return
	}

	due := make([]*scheduledJob, 0, len(s.jobs))
	entries := make([]Entry, 0, len(s.jobs))
	for id, j := range s.jobs {
		if now.Before(j.runAt) {
			continue
		}
		j.runs++
		due = append(due, j)

		switch {
		case j.interval > 0:
			j.runAt = now.Add(j.interval)
		case j.schedule != nil:
			j.runAt = j.schedule.Next(now.In(s.location))
		default:
			delete(s.jobs, id)
		}
		entries = append(entries, j.entry())
	}
	active := len(s.jobs)
	s.mu.Unlock()

	for i, j := range due {
		s.fire(j.job, entries[i])
	}

	if len(due) > 0 {
		s.withMetrics(func(r *metrics.Registry, name string) {
			r.JobsActive.WithLabelValues(name).Set(float64(active))
		})
	}
}

// fire triggers one job. A panicking Runner is logged and treated as an error.
func (s *scheduler) fire(job Job, e Entry) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %q panicked: %v", e.ID, r)
			}
		}()
		return job.trigger()
	}()

	if err != nil {
		s.logger.Warn("job trigger rejected", "job", e.ID, "error", err)
		s.withMetrics(func(r *metrics.Registry, name string) {
			r.JobsFailed.WithLabelValues(name).Inc()
		})
		if s.onError != nil {
			s.onError(e, err)
		}
		return
	}

	s.logger.Debug("job triggered", "job", e.ID, "runs", e.Runs, "sequential", e.Sequential)
	s.withMetrics(func(r *metrics.Registry, name string) {
		r.JobsTriggered.WithLabelValues(name).Inc()
	})
	if s.onTriggered != nil {
		s.onTriggered(e)
	}
}
