/*
Package taskqueue provides an in-process task scheduler: an ordered queue of
named steps that can be run concurrently or strictly in sequence.

Steps are registered with Add (complete when the callback returns) or AddAsync
(complete when the callback calls Handle.Done, possibly from another
goroutine). Each step receives a registration number that stays stable across
removals and can be looked up by name, by number, or by position.

Basic usage:

	q := taskqueue.New()
	q.Add("fetch", func(h *taskqueue.Handle) { fetch() })
	q.AddAsync("upload", func(h *taskqueue.Handle) {
		go func() {
			upload()
			h.Done()
		}()
	})

	q.On(taskqueue.EventComplete, func(ev taskqueue.Event) {
		log.Printf("run %s finished in %v", ev.RunID, ev.Duration)
	})

	if err := q.RunAndWait(ctx, true); err != nil {
		log.Fatal(err)
	}

Run modes:
  - Run starts every step in registration order without waiting, each
    callback on its own goroutine. Completion order is unspecified.
  - RunSequential starts a step only after the previous one completed or was
    skipped.

Timeouts are advisory. A queue-wide timeout (Config.Timeout) publishes
EventTimeout with a status log of every step; a step timeout (Handle.SetTimeout)
marks the step StatusTimedOut and publishes EventStepTimeout. Neither stops a
callback, and a timed-out step still completes when it calls Done.

Abort skips every step that has not started and lets running steps drain;
the run's EventComplete is then followed by EventAborted. Reset clears the
skip requests so the queue can run again.

Operations that would mutate the queue during a run are rejected: they log a
warning and return an error wrapping errors.ErrProcessing.

Observers are notified synchronously through On and OnAny, outside the
queue's locks, so handlers may call back into the queue.
*/
package taskqueue
