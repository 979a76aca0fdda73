/*
Package scheduling groups the stepflow execution primitives.

  - taskqueue: Ordered steps run in parallel or in sequence, with events
  - scheduler: Time-based triggering of queue runs

Task Queue:

A queue holds steps in registration order and runs them all at once or one at
a time. Completion is reported through events rather than return values:

	q := taskqueue.New()
	defer q.Close()

	q.Add("prepare", func(h *taskqueue.Handle) { prepare() })
	q.AddAsync("upload", func(h *taskqueue.Handle) {
		go func() {
			defer h.Done()
			upload()
		}()
	})

	q.On(taskqueue.EventComplete, func(ev taskqueue.Event) {
		log.Printf("done in %s", ev.Duration)
	})
	q.RunSequential()

Timeouts, both per step (Handle.SetTimeout) and queue-wide (Queue.SetTimeout),
are advisory: they publish EventStepTimeout or EventTimeout and never stop a
callback.

Task Scheduler:

The scheduler triggers queue runs at a time, on an interval, or on a cron
schedule with a seconds field:

	sched := scheduler.New()
	sched.ScheduleRepeating("poll", scheduler.Job{Queue: q}, time.Minute)
	sched.ScheduleCron("nightly", "0 0 2 * * *", scheduler.Job{Queue: q, Sequential: true})
	sched.Start()
	defer func() { <-sched.Stop() }()

A trigger that finds the queue still processing is rejected by the queue and
reported through Config.OnError.

Both components support Prometheus metrics through EnableMetrics.
*/
package scheduling
