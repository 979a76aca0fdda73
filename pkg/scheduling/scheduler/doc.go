/*
Package scheduler triggers task queue runs at fixed times, at intervals, or on
cron schedules.

A scheduler does not execute steps itself. Each job names a queue (anything
with Run and RunSequential, such as *taskqueue.Queue) and a run mode; when the
job is due the scheduler starts a run on that queue and moves on. A queue that
is still processing its previous run rejects the trigger, which is reported
through Config.OnError and the jobs_failed metric while the job stays
scheduled.

Basic Usage:

	s := scheduler.New()
	defer func() { <-s.Stop() }()

	if err := s.Start(); err != nil {
		log.Fatal(err)
	}

	q := taskqueue.New()
	q.Add("backup", backup)

	// One-time run in five minutes
	s.ScheduleAfter("backup-once", scheduler.Job{Queue: q}, 5*time.Minute)

	// Sequential run every hour
	s.ScheduleRepeating("backup-hourly", scheduler.Job{Queue: q, Sequential: true}, time.Hour)

	// Every day at 02:00:00 (six fields, seconds first)
	s.ScheduleCron("backup-nightly", "0 0 2 * * *", scheduler.Job{Queue: q})

Job Management:

	if e, ok := s.Get("backup-hourly"); ok {
		fmt.Printf("next run %v after %d runs\n", e.NextRun, e.Runs)
	}
	for _, e := range s.List() { // sorted by next run
		fmt.Println(e.ID, e.NextRun)
	}
	s.Cancel("backup-once")
	s.CancelAll()

Cron expressions are parsed with robfig/cron using six fields. ParseCron
validates one without scheduling it and NextRuns previews activations.

Thread Safety:

All scheduler operations are safe for concurrent use from multiple goroutines.
*/
package scheduler
