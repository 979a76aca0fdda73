package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/stepflow/internal/plan"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

// abortGrace bounds how long an interrupted run waits for running steps.
const abortGrace = 10 * time.Second

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Run a plan once",
		Long: `Run loads a plan and runs every step once, in parallel unless the plan or
--sequential asks for one step at a time. Timeouts are reported but never stop
a running step. Interrupting the run aborts it: pending steps are skipped and
running commands are killed.`,
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
		RunE: a.runPlan,
	}

	f := cmd.Flags()
	f.Bool("sequential", false, "run steps one at a time (overrides the plan)")
	f.Duration("timeout", 0, "queue-wide advisory timeout (overrides the plan)")
	f.String("mode", "", "diagnostic mode: development is verbose")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.String("redis-addr", "", "publish queue events to this Redis server")
	f.String("redis-channel", "stepflow:events", "Redis pub/sub channel for events")
	f.BoolP("quiet", "q", false, "print only the summary")
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, args []string) error {
	logger := a.logger(cmd)

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	sequential := p.Sequential
	if cmd.Flags().Changed("sequential") {
		sequential, _ = cmd.Flags().GetBool("sequential")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Commands outlive ctx by the abort grace period so an interrupt can
	// skip pending steps before running ones are killed.
	execCtx, cancelExec := context.WithCancel(context.Background())
	defer cancelExec()

	q, results, err := p.Build(execCtx, plan.Options{
		Executor: a.executor,
		Logger:   logger,
		Mode:     a.v.GetString(keyMode),
		Timeout:  a.v.GetDuration(keyTimeout),
	})
	if err != nil {
		return err
	}
	defer q.Close()

	svc, err := a.startServices(ctx, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	name := planName(p, args[0])
	if err := svc.instrument(name, q); err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		q.OnAny(newPrinter(cmd.OutOrStdout()).event)
	}

	if err := startRun(q, sequential); err != nil {
		return err
	}

	aborted := false
	if err := q.Wait(ctx); err != nil {
		aborted = true
		q.Abort()
		graceCtx, cancel := context.WithTimeout(context.Background(), abortGrace)
		err = q.Wait(graceCtx)
		cancel()
		if err != nil {
			cancelExec()
			logger.Warn("killed running steps after abort", "plan", name)
		}
	}

	all := results.All()
	writeSummary(cmd.OutOrStdout(), all)

	if aborted {
		return fmt.Errorf("run of %s aborted", name)
	}
	if failed := results.Failed(); len(failed) > 0 {
		names := make([]string, len(failed))
		for i, r := range failed {
			names[i] = r.Name
		}
		return fmt.Errorf("%d of %d steps failed: %s", len(failed), len(p.Steps), strings.Join(names, ", "))
	}
	return nil
}

func startRun(q *taskqueue.Queue, sequential bool) error {
	if sequential {
		return q.RunSequential()
	}
	return q.Run()
}

// planName is the plan's name, or its file name without extension.
func planName(p *plan.Plan, path string) string {
	if p.Name != "" {
		return p.Name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
