/*
Package stepflow runs named units of work as a queue, either all at once or
one after another, and reports progress through events.

Scheduling (pkg/scheduling):
  - taskqueue: Steps, parallel and sequential runs, advisory timeouts, skip and abort
  - scheduler: Interval, one-shot and cron triggers for queue runs

Outputs:
  - metrics: Prometheus counters and histograms for queues and schedulers
  - notify: Queue events over Redis pub/sub

Command line (cmd/stepflow):
  - run, list, schedule and watch YAML plans of shell steps

Example usage:

	import "github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"

	q := taskqueue.New()
	q.Add("fetch", func(h *taskqueue.Handle) { fetch() })
	q.AddAsync("upload", func(h *taskqueue.Handle) {
		h.SetTimeout(30 * time.Second)
		go func() {
			defer h.Done()
			upload()
		}()
	})
	q.On(taskqueue.EventComplete, func(ev taskqueue.Event) {
		log.Printf("run %s finished in %s", ev.RunID, ev.Duration)
	})
	q.RunSequential()

See individual package documentation for detailed usage.
*/
package stepflow
