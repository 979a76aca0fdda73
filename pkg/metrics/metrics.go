// Package metrics provides Prometheus instrumentation for stepflow components.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless Config.Namespace is set.
const DefaultNamespace = "stepflow"

// Registry holds all metric instances for stepflow components.
type Registry struct {
	// Queue Metrics
	QueueSteps    *prometheus.GaugeVec
	RunsCompleted *prometheus.CounterVec
	RunsAborted   *prometheus.CounterVec
	RunTimeouts   *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	QueueEvents   *prometheus.CounterVec

	// Step Metrics
	StepsStarted   *prometheus.CounterVec
	StepsCompleted *prometheus.CounterVec
	StepsSkipped   *prometheus.CounterVec
	StepsTimedOut  *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec

	// Scheduler Metrics
	JobsScheduled *prometheus.CounterVec
	JobsTriggered *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsActive    *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by stepflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

type registryKey struct {
	reg    prometheus.Registerer
	ns     string
	labels string
}

var (
	registriesMu sync.Mutex
	registries   = map[registryKey]*Registry{}
)

// FromConfig returns the Registry for config's registerer, namespace and
// labels, creating it on first use. Components configured alike share one
// Registry, so a queue and a scheduler can report to the same registerer.
func FromConfig(config Config) *Registry {
	defaultReg := config.Registry == nil || config.Registry == prometheus.DefaultRegisterer
	defaultNS := config.Namespace == "" || config.Namespace == DefaultNamespace
	if defaultReg && defaultNS && len(config.Labels) == 0 {
		return DefaultRegistry
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	key := registryKey{reg: reg, ns: ns, labels: labelKey(config.Labels)}
	registriesMu.Lock()
	defer registriesMu.Unlock()
	if r, ok := registries[key]; ok {
		return r
	}
	r := newRegistry(reg, ns, config.Labels)
	registries[key] = r
	return r
}

func labelKey(labels prometheus.Labels) string {
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func newRegistry(reg prometheus.Registerer, ns string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Queue Metrics
		QueueSteps: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "steps",
				Help:        "Number of steps registered on the queue",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		RunsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "runs_completed_total",
				Help:        "Total number of queue runs that completed",
				ConstLabels: labels,
			},
			[]string{"queue_name", "mode"},
		),

		RunsAborted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "runs_aborted_total",
				Help:        "Total number of queue runs that were aborted",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		RunTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "timeouts_total",
				Help:        "Total number of queue-wide timeouts",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "run_duration_seconds",
				Help:        "Time from run start to completion",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"queue_name", "mode"},
		),

		QueueEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "queue",
				Name:        "events_total",
				Help:        "Total number of queue notifications by kind",
				ConstLabels: labels,
			},
			[]string{"queue_name", "event"},
		),

		// Step Metrics
		StepsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "step",
				Name:        "started_total",
				Help:        "Total number of steps started",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		StepsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "step",
				Name:        "completed_total",
				Help:        "Total number of steps that signalled completion",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		StepsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "step",
				Name:        "skipped_total",
				Help:        "Total number of steps passed over without running",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		StepsTimedOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "step",
				Name:        "timedout_total",
				Help:        "Total number of step timeouts",
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "step",
				Name:        "duration_seconds",
				Help:        "Time from step start to completion",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"queue_name"},
		),

		// Scheduler Metrics
		JobsScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "jobs_scheduled_total",
				Help:        "Total number of jobs scheduled",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		JobsTriggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "jobs_triggered_total",
				Help:        "Total number of queue runs started by the scheduler",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "jobs_failed_total",
				Help:        "Total number of triggers the queue rejected",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		JobsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "jobs_active",
				Help:        "Number of jobs currently scheduled",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),
	}
}
