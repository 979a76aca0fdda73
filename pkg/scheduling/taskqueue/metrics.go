package taskqueue

import (
	"github.com/vnykmshr/stepflow/pkg/common/validation"
	"github.com/vnykmshr/stepflow/pkg/metrics"
)

var _ metrics.Instrumentable = (*Queue)(nil)

// queueMetrics translates queue events into Prometheus samples.
type queueMetrics struct {
	name     string
	registry *metrics.Registry
	subID    string
}

// EnableMetrics records queue and step metrics under name. Calling it again
// replaces the previous registration. A disabled config is a no-op.
func (q *Queue) EnableMetrics(name string, config metrics.Config) error {
	if err := validation.ValidateNotEmpty(module, "metrics name", name); err != nil {
		return err
	}
	if !config.Enabled {
		return nil
	}

	qm := &queueMetrics{
		name:     name,
		registry: metrics.FromConfig(config),
	}

	q.DisableMetrics()
	qm.subID = q.OnAny(func(ev Event) { qm.observe(q, ev) })

	q.metricsMu.Lock()
	q.metrics = qm
	q.metricsMu.Unlock()

	qm.registry.QueueSteps.WithLabelValues(name).Set(float64(q.Len()))
	return nil
}

// DisableMetrics stops metrics collection.
func (q *Queue) DisableMetrics() {
	q.metricsMu.Lock()
	qm := q.metrics
	q.metrics = nil
	q.metricsMu.Unlock()

	if qm != nil {
		q.Off(qm.subID)
	}
}

// MetricsEnabled returns true if metrics are currently enabled.
func (q *Queue) MetricsEnabled() bool {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()
	return q.metrics != nil
}

func runMode(sequential bool) string {
	if sequential {
		return "sequential"
	}
	return "parallel"
}

func (qm *queueMetrics) observe(q *Queue, ev Event) {
	r := qm.registry
	r.QueueEvents.WithLabelValues(qm.name, ev.Kind.String()).Inc()

	switch ev.Kind {
	case EventStepAdded, EventStepRemoved:
		r.QueueSteps.WithLabelValues(qm.name).Set(float64(q.Len()))
	case EventStepStarted:
		r.StepsStarted.WithLabelValues(qm.name).Inc()
	case EventStepSkipped:
		r.StepsSkipped.WithLabelValues(qm.name).Inc()
	case EventStepTimeout:
		r.StepsTimedOut.WithLabelValues(qm.name).Inc()
	case EventStepComplete:
		// Skips also publish stepcomplete; count only steps that ran.
		if ev.Step.Status == StatusComplete {
			r.StepsCompleted.WithLabelValues(qm.name).Inc()
			r.StepDuration.WithLabelValues(qm.name).Observe(ev.Duration.Seconds())
		}
	case EventTimeout:
		r.RunTimeouts.WithLabelValues(qm.name).Inc()
	case EventComplete:
		mode := runMode(ev.Sequential)
		r.RunsCompleted.WithLabelValues(qm.name, mode).Inc()
		r.RunDuration.WithLabelValues(qm.name, mode).Observe(ev.Duration.Seconds())
	case EventAborted:
		r.RunsAborted.WithLabelValues(qm.name).Inc()
	}
}
