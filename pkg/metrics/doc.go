// Package metrics provides Prometheus instrumentation for stepflow components.
//
// # Overview
//
// The metrics package instruments:
//   - Queues (registered steps, completed and aborted runs, queue-wide timeouts, run duration)
//   - Steps (started, completed, skipped and timed-out steps, step duration)
//   - Schedulers (scheduled, triggered and failed jobs, active jobs)
//
// # Quick Start
//
// Enable metrics on a queue or scheduler:
//
//	q := taskqueue.New()
//	q.EnableMetrics("deploy", metrics.Config{Enabled: true})
//
//	s := scheduler.New()
//	s.EnableMetrics("nightly", metrics.Config{Enabled: true})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	q.EnableMetrics("deploy", metrics.Config{Enabled: true, Registry: registry})
//
// # Available Metrics
//
// ## Queue Metrics
//
//   - stepflow_queue_steps: Number of steps registered on the queue
//   - stepflow_queue_runs_completed_total: Total number of queue runs that completed
//   - stepflow_queue_runs_aborted_total: Total number of queue runs that were aborted
//   - stepflow_queue_timeouts_total: Total number of queue-wide timeouts
//   - stepflow_queue_run_duration_seconds: Time from run start to completion
//   - stepflow_queue_events_total: Total number of queue notifications by kind
//
// ## Step Metrics
//
//   - stepflow_step_started_total
//   - stepflow_step_completed_total
//   - stepflow_step_skipped_total
//   - stepflow_step_timedout_total
//   - stepflow_step_duration_seconds
//
// ## Scheduler Metrics
//
//   - stepflow_scheduler_jobs_scheduled_total
//   - stepflow_scheduler_jobs_triggered_total
//   - stepflow_scheduler_jobs_failed_total
//   - stepflow_scheduler_jobs_active
//
// # Labels
//
//   - queue_name: User-provided name for the queue instance
//   - mode: "parallel" or "sequential"
//   - event: Notification kind, e.g. "stepcomplete"
//   - scheduler_name: User-provided name for the scheduler instance
package metrics
