package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

// StepRecord is the wire form of taskqueue.StepInfo.
type StepRecord struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Record is the wire form of a taskqueue.Event.
type Record struct {
	Kind       string               `json:"kind"`
	Queue      string               `json:"queue"`
	Instance   string               `json:"instance,omitempty"`
	RunID      string               `json:"run_id,omitempty"`
	Sequential bool                 `json:"sequential,omitempty"`
	Step       *StepRecord          `json:"step,omitempty"`
	Log        []taskqueue.LogEntry `json:"log,omitempty"`
	DurationMS int64                `json:"duration_ms,omitempty"`
	At         time.Time            `json:"at"`
}

// NewRecord converts ev for publication under the queue name.
func NewRecord(queue, instance string, ev taskqueue.Event) Record {
	rec := Record{
		Kind:       ev.Kind.String(),
		Queue:      queue,
		Instance:   instance,
		Sequential: ev.Sequential,
		Log:        ev.Log,
		DurationMS: ev.Duration.Milliseconds(),
		At:         ev.At.UTC(),
	}
	if ev.RunID != uuid.Nil {
		rec.RunID = ev.RunID.String()
	}
	if ev.Step.Number != 0 {
		rec.Step = &StepRecord{
			Number: ev.Step.Number,
			Name:   ev.Step.Name,
			Status: ev.Step.Status.String(),
		}
	}
	return rec
}

// EventKind returns the record's kind as a taskqueue.EventKind.
func (r Record) EventKind() (taskqueue.EventKind, bool) {
	return taskqueue.ParseEventKind(r.Kind)
}

// Duration returns the record's duration.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// Encode marshals r as JSON.
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode unmarshals a JSON record and rejects unknown kinds.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if _, ok := r.EventKind(); !ok {
		return Record{}, fmt.Errorf("decode record: unknown kind %q", r.Kind)
	}
	return r, nil
}
