package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vnykmshr/stepflow/internal/plan"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

// labelWidth pads event labels so step numbers line up.
const labelWidth = 9

// printer writes one line per queue event. Observers run on step goroutines,
// so writes are serialized. Labels are colored only when w is a terminal.
type printer struct {
	mu sync.Mutex
	w  io.Writer

	started lipgloss.Style
	done    lipgloss.Style
	skipped lipgloss.Style
	warn    lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		started: r.NewStyle().Foreground(lipgloss.Color("6")),
		done:    r.NewStyle().Foreground(lipgloss.Color("2")),
		skipped: r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	}
}

func label(style lipgloss.Style, word string) string {
	pad := labelWidth - len(word)
	if pad < 1 {
		pad = 1
	}
	return style.Render(word) + strings.Repeat(" ", pad)
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) event(ev taskqueue.Event) {
	switch ev.Kind {
	case taskqueue.EventStepStarted:
		p.printf("%s#%d %s\n", label(p.started, "start"), ev.Step.Number, ev.Step.Name)
	case taskqueue.EventStepSkipped:
		p.printf("%s#%d %s\n", label(p.skipped, "skip"), ev.Step.Number, ev.Step.Name)
	case taskqueue.EventStepTimeout:
		p.printf("%s#%d %s after %s\n", label(p.warn, "overdue"), ev.Step.Number, ev.Step.Name, round(ev.Duration))
	case taskqueue.EventStepComplete:
		if ev.Step.Status == taskqueue.StatusComplete {
			p.printf("%s#%d %s in %s\n", label(p.done, "done"), ev.Step.Number, ev.Step.Name, round(ev.Duration))
		}
	case taskqueue.EventTimeout:
		p.mu.Lock()
		fmt.Fprintf(p.w, "%s after %s\n", p.warn.Render("queue timed out"), round(ev.Duration))
		for _, entry := range ev.Log {
			fmt.Fprintf(p.w, "  %s: %s\n", entry.Name, entry.Status)
		}
		p.mu.Unlock()
	case taskqueue.EventAborting:
		p.printf("%s\n", p.warn.Render("aborting"))
	case taskqueue.EventAborted:
		p.printf("%s\n", p.warn.Render("aborted"))
	}
}

func writeSummary(w io.Writer, results []plan.StepResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tEXIT\tDURATION")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Number, r.Name, r.ExitCode, round(r.Duration))
	}
	_ = tw.Flush()
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Millisecond)
	default:
		return d
	}
}
