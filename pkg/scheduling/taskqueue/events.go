package taskqueue

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies one of the notifications a queue publishes.
type EventKind int

const (
	EventStepAdded EventKind = iota + 1
	EventStepRemoved
	EventStepStarted
	EventStepSkipped
	EventStepTimeout
	EventStepComplete
	EventTimeout
	EventComplete
	EventAborting
	EventAborted
)

var eventNames = map[EventKind]string{
	EventStepAdded:    "stepadded",
	EventStepRemoved:  "stepremoved",
	EventStepStarted:  "stepstarted",
	EventStepSkipped:  "stepskipped",
	EventStepTimeout:  "steptimeout",
	EventStepComplete: "stepcomplete",
	EventTimeout:      "timeout",
	EventComplete:     "complete",
	EventAborting:     "aborting",
	EventAborted:      "aborted",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Kinds returns every event kind in declaration order.
func Kinds() []EventKind {
	return []EventKind{
		EventStepAdded, EventStepRemoved, EventStepStarted, EventStepSkipped,
		EventStepTimeout, EventStepComplete, EventTimeout, EventComplete,
		EventAborting, EventAborted,
	}
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(name string) (EventKind, bool) {
	for k, n := range eventNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Event is a notification published by a queue.
type Event struct {
	Kind EventKind

	// RunID identifies the run the event belongs to. It is the zero UUID for
	// events raised outside a run (step registration, idle aborts).
	RunID uuid.UUID

	// Sequential is the mode of the run, for run-scoped events.
	Sequential bool

	// Step is set for step-scoped events.
	Step StepInfo

	// Log is set for EventTimeout: one entry per step, in queue order.
	Log []LogEntry

	// Duration is the step's running time for EventStepComplete and the run's
	// elapsed time for EventComplete and EventTimeout.
	Duration time.Duration

	At time.Time
}

// Handler receives queue events. Handlers run synchronously on the goroutine
// that caused the transition, so they must be fast and safe for concurrent use.
type Handler func(Event)

type subscription struct {
	id      string
	kind    EventKind // zero for wildcard
	handler Handler
}

// observers is the per-queue subscription registry.
type observers struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64
	logger *slog.Logger
}

func (o *observers) subscribe(kind EventKind, h Handler) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := fmt.Sprintf("sub-%d", o.nextID.Add(1))
	o.subs = append(o.subs, subscription{id: id, kind: kind, handler: h})
	return id
}

func (o *observers) unsubscribe(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, sub := range o.subs {
		if sub.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (o *observers) count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

// publish dispatches to kind-specific handlers first, then wildcard handlers,
// each group in subscription order.
func (o *observers) publish(ev Event) {
	o.mu.RLock()
	specific := make([]Handler, 0, len(o.subs))
	wildcard := make([]Handler, 0, len(o.subs))
	for _, sub := range o.subs {
		switch sub.kind {
		case ev.Kind:
			specific = append(specific, sub.handler)
		case 0:
			wildcard = append(wildcard, sub.handler)
		}
	}
	o.mu.RUnlock()

	for _, h := range specific {
		o.safeCall(h, ev)
	}
	for _, h := range wildcard {
		o.safeCall(h, ev)
	}
}

// safeCall keeps one misbehaving handler from blocking delivery to the rest
// or from corrupting the run that published the event.
func (o *observers) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("event handler panicked",
				"event", ev.Kind.String(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	h(ev)
}
