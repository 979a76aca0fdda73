package scheduler

import (
	"github.com/vnykmshr/stepflow/pkg/common/validation"
	"github.com/vnykmshr/stepflow/pkg/metrics"
)

// EnableMetrics records scheduler metrics under name.
func (s *scheduler) EnableMetrics(name string, config metrics.Config) error {
	if err := validation.ValidateNotEmpty(module, "metrics name", name); err != nil {
		return err
	}
	if !config.Enabled {
		return nil
	}

	registry := metrics.FromConfig(config)

	s.mu.RLock()
	active := len(s.jobs)
	s.mu.RUnlock()

	s.metricsMu.Lock()
	s.metricsName = name
	s.registry = registry
	s.metricsMu.Unlock()

	registry.JobsActive.WithLabelValues(name).Set(float64(active))
	return nil
}

// DisableMetrics stops metrics collection.
func (s *scheduler) DisableMetrics() {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.registry = nil
}

// MetricsEnabled returns true if metrics are currently enabled.
func (s *scheduler) MetricsEnabled() bool {
	s.metricsMu.RLock()
	defer s.metricsMu.RUnlock()
	return s.registry != nil
}

func (s *scheduler) withMetrics(fn func(r *metrics.Registry, name string)) {
	s.metricsMu.RLock()
	r, name := s.registry, s.metricsName
	s.metricsMu.RUnlock()

	if r != nil {
		fn(r, name)
	}
}
