package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

// Command is a resolved step command ready to execute.
type Command struct {
	Shell string
	Run   string
	Dir   string
	Env   []string
}

// Executor runs one command and returns its combined output and exit code.
type Executor interface {
	Exec(ctx context.Context, cmd Command) (output []byte, exitCode int, err error)
}

// ShellExecutor runs commands as `<shell> -c <run>` in a subprocess.
type ShellExecutor struct{}

// Exec implements Executor.
func (ShellExecutor) Exec(ctx context.Context, cmd Command) ([]byte, int, error) {
	c := exec.CommandContext(ctx, cmd.Shell, "-c", cmd.Run)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out.Bytes(), exitErr.ExitCode(), err
	}
	if err != nil {
		return out.Bytes(), -1, err
	}
	return out.Bytes(), 0, nil
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Number   int
	Name     string
	ExitCode int
	Output   string
	Err      error
	Duration time.Duration
}

// Results collects step outcomes as a run progresses. Safe for concurrent use.
type Results struct {
	mu    sync.Mutex
	steps []StepResult
}

func (r *Results) record(res StepResult) {
	r.mu.Lock()
	r.steps = append(r.steps, res)
	r.mu.Unlock()
}

// All returns the recorded results ordered by step number.
func (r *Results) All() []StepResult {
	r.mu.Lock()
	out := make([]StepResult, len(r.steps))
	copy(out, r.steps)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Failed returns the results whose command failed.
func (r *Results) Failed() []StepResult {
	var failed []StepResult
	for _, res := range r.All() {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Options configures Build.
type Options struct {
	// Executor defaults to ShellExecutor.
	Executor Executor
	Logger   *slog.Logger
	// Mode overrides the plan's mode when non-empty.
	Mode string
	// Timeout overrides the plan's queue timeout when non-zero.
	Timeout time.Duration
}

// Build creates a queue holding one asynchronous step per plan step. Each step
// executes its command on its own goroutine and reports Done when the command
// exits. Steps marked skip are registered and skipped. ctx bounds every
// command; cancelling it kills running subprocesses.
func (p *Plan) Build(ctx context.Context, opts Options) (*taskqueue.Queue, *Results, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	exe := opts.Executor
	if exe == nil {
		exe = ShellExecutor{}
	}
	mode := p.Mode
	if opts.Mode != "" {
		mode = opts.Mode
	}
	timeout := p.Timeout.Std()
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}

	q, err := taskqueue.NewWithConfig(taskqueue.Config{
		Mode:    mode,
		Timeout: timeout,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	results := &Results{}
	shell := p.shell()
	for _, ps := range p.Steps {
		step := ps
		cmd := Command{Shell: shell, Run: step.Run, Dir: step.Dir, Env: envList(step.Env)}

		s, err := q.AddAsync(step.Name, func(h *taskqueue.Handle) {
			if d := step.Timeout.Std(); d > 0 {
				h.SetTimeout(d)
			}
			go func() {
				defer h.Done()
				started := time.Now()
				out, code, err := exe.Exec(ctx, cmd)
				if err != nil {
					h.Logger().Warn("step command failed", "exit_code", code, "error", err)
				}
				results.record(StepResult{
					Number:   h.Number(),
					Name:     h.Name(),
					ExitCode: code,
					Output:   string(out),
					Err:      err,
					Duration: time.Since(started),
				})
			}()
		})
		if err != nil {
			q.Close()
			return nil, nil, fmt.Errorf("add step %q: %w", step.Name, err)
		}
		if step.Skip {
			if err := s.Skip(); err != nil {
				q.Close()
				return nil, nil, err
			}
		}
	}
	return q, results, nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
