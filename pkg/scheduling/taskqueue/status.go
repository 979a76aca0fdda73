package taskqueue

// Status is the lifecycle state of a step within the current run.
type Status int

const (
	// StatusPending means the step has not been reached in the current run.
	StatusPending Status = iota
	// StatusRunning means the step's callback has been invoked and has not
	// signalled completion.
	StatusRunning
	// StatusComplete means the step signalled completion.
	StatusComplete
	// StatusSkipped means the step was passed over without invoking its callback.
	StatusSkipped
	// StatusTimedOut means the step's own timer expired while it was running.
	// A later completion still moves it to StatusComplete.
	StatusTimedOut
)

// NotStarted is the label used for pending steps in timeout logs.
const NotStarted = "NOT STARTED"

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusSkipped:
		return "skipped"
	case StatusTimedOut:
		return "timedout"
	default:
		return "unknown"
	}
}

// Label is String with pending rendered as NotStarted.
func (s Status) Label() string {
	if s == StatusPending {
		return NotStarted
	}
	return s.String()
}

// settled reports whether the status counts as completion for aggregation.
func (s Status) settled() bool {
	return s == StatusComplete || s == StatusSkipped
}

// StepInfo is a point-in-time view of a step.
type StepInfo struct {
	Number int
	Name   string
	Status Status
}

// LogEntry is one line of the per-step status log carried by queue timeouts.
type LogEntry struct {
	Name   string
	Status string
}
