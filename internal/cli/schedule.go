package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/stepflow/internal/plan"
	"github.com/vnykmshr/stepflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

func (a *app) newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <plan>",
		Short: "Run a plan repeatedly on an interval or cron schedule",
		Long: `Schedule runs a plan on a fixed interval (--every) or a six-field cron
expression with seconds (--cron) until interrupted or until --for elapses.
A trigger that arrives while the previous run is still processing is reported
and skipped. With --watch the plan file is reloaded when it changes.`,
		Example: `  stepflow schedule backup.yaml --every 15m
  stepflow schedule report.yaml --cron "0 0 6 * * MON-FRI" --watch`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{
				keyMode:         "mode",
				keyTimeout:      "timeout",
				keyMetricsAddr:  "metrics-addr",
				keyRedisAddr:    "redis-addr",
				keyRedisChannel: "redis-channel",
			})
		},
		RunE: a.schedulePlan,
	}

	f := cmd.Flags()
	f.String("cron", "", "cron expression with seconds field")
	f.Duration("every", 0, "fixed interval between runs")
	f.Duration("for", 0, "stop after this long (default: until interrupted)")
	f.Bool("watch", false, "reload the plan when the file changes")
	f.Bool("sequential", false, "run steps one at a time (overrides the plan)")
	f.Duration("timeout", 0, "queue-wide advisory timeout (overrides the plan)")
	f.String("mode", "", "diagnostic mode: development is verbose")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.String("redis-addr", "", "publish queue events to this Redis server")
	f.String("redis-channel", "stepflow:events", "Redis pub/sub channel for events")
	cmd.MarkFlagsMutuallyExclusive("cron", "every")
	cmd.MarkFlagsOneRequired("cron", "every")
	return cmd
}

// scheduledPlan is the queue currently registered with the scheduler.
type scheduledPlan struct {
	name    string
	queue   *taskqueue.Queue
	results *plan.Results
}

type planScheduler struct {
	a       *app
	cmd     *cobra.Command
	ctx     context.Context
	logger  *slog.Logger
	sched   scheduler.Scheduler
	svc     *services
	out     *printer
	path    string
	current *scheduledPlan
	failed  int
}

func (a *app) schedulePlan(cmd *cobra.Command, args []string) error {
	logger := a.logger(cmd)
	f := cmd.Flags()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d, _ := f.GetDuration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	ps := &planScheduler{
		a:      a,
		cmd:    cmd,
		ctx:    ctx,
		logger: logger,
		out:    newPrinter(cmd.OutOrStdout()),
		path:   args[0],
	}

	p, err := plan.Load(ps.path)
	if err != nil {
		return err
	}

	svc, err := a.startServices(ctx, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	ps.svc = svc

	sched, err := scheduler.NewWithConfig(scheduler.Config{
		Logger: logger,
		OnTriggered: func(e scheduler.Entry) {
			ps.out.printf("run %d of %s started\n", e.Runs, e.ID)
		},
		OnError: func(e scheduler.Entry, err error) {
			logger.Warn("skipped trigger", "job", e.ID, "error", err)
		},
	})
	if err != nil {
		return err
	}
	ps.sched = sched
	if svc.metrics != nil {
		if err := sched.EnableMetrics(planName(p, ps.path), svc.metrics.config()); err != nil {
			return err
		}
	}

	if err := ps.install(p); err != nil {
		return err
	}
	defer ps.retire()

	var reload <-chan struct{}
	if watch, _ := f.GetBool("watch"); watch {
		reload, err = watchFile(ctx, ps.path, logger)
		if err != nil {
			return err
		}
	}

	if err := sched.Start(); err != nil {
		return err
	}
	if e, ok := sched.Get(ps.current.name); ok {
		ps.out.printf("scheduled %s, next run %s\n", e.ID, e.NextRun.Format("2006-01-02 15:04:05"))
	}

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-reload:
			ps.reload()
		}
	}
	<-sched.Stop()

	runs := 0
	if e, ok := sched.Get(ps.current.name); ok {
		runs = e.Runs
	}
	ps.retire()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d triggers, %d failed steps\n", ps.current.name, runs, ps.failed)
	return nil
}

// install builds a queue from p and schedules it under the plan's name.
func (ps *planScheduler) install(p *plan.Plan) error {
	f := ps.cmd.Flags()
	sequential := p.Sequential
	if f.Changed("sequential") {
		sequential, _ = f.GetBool("sequential")
	}

	q, results, err := p.Build(ps.ctx, plan.Options{
		Executor: ps.a.executor,
		Logger:   ps.logger,
		Mode:     ps.a.v.GetString(keyMode),
		Timeout:  ps.a.v.GetDuration(keyTimeout),
	})
	if err != nil {
		return err
	}

	name := planName(p, ps.path)
	if err := ps.svc.instrument(name, q); err != nil {
		q.Close()
		return err
	}

	job := scheduler.Job{Queue: q, Sequential: sequential}
	if expr, _ := f.GetString("cron"); expr != "" {
		err = ps.sched.ScheduleCron(name, expr, job)
	} else {
		every, _ := f.GetDuration("every")
		err = ps.sched.ScheduleRepeating(name, job, every)
	}
	if err != nil {
		q.Close()
		return err
	}

	ps.current = &scheduledPlan{name: name, queue: q, results: results}
	return nil
}

// reload swaps in the plan file's new contents. A plan that fails to load
// keeps the previous one scheduled.
func (ps *planScheduler) reload() {
	p, err := plan.Load(ps.path)
	if err != nil {
		ps.logger.Warn("plan reload failed, keeping previous plan", "path", ps.path, "error", err)
		return
	}

	prev := ps.current
	ps.sched.Cancel(prev.name)
	ps.retire()

	if err := ps.install(p); err != nil {
		ps.logger.Error("plan reload failed", "path", ps.path, "error", err)
		return
	}
	ps.out.printf("reloaded %s (%d steps)\n", ps.current.name, ps.current.queue.Len())
}

// retire lets a running run of the current queue drain, aborting it if the
// schedule is over, then closes the queue. Safe to call more than once.
func (ps *planScheduler) retire() {
	cur := ps.current
	if cur == nil || cur.queue == nil {
		return
	}
	q := cur.queue
	if q.Processing() {
		if ps.ctx.Err() != nil {
			q.Abort()
		}
		graceCtx, cancel := context.WithTimeout(context.Background(), abortGrace)
		if err := q.Wait(graceCtx); err != nil {
			ps.logger.Warn("wait for final run", "plan", cur.name, "error", err)
		}
		cancel()
	}
	q.Close()
	ps.failed += len(cur.results.Failed())
	cur.queue = nil
}
