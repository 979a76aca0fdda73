package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

func TestNewRecord_StepEvent(t *testing.T) {
	runID := uuid.New()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))

	rec := NewRecord("deploy", "host-1", taskqueue.Event{
		Kind:       taskqueue.EventStepComplete,
		RunID:      runID,
		Sequential: true,
		Step:       taskqueue.StepInfo{Number: 2, Name: "build", Status: taskqueue.StatusComplete},
		Duration:   1500 * time.Millisecond,
		At:         at,
	})

	assert.Equal(t, "stepcomplete", rec.Kind)
	assert.Equal(t, "deploy", rec.Queue)
	assert.Equal(t, "host-1", rec.Instance)
	assert.Equal(t, runID.String(), rec.RunID)
	assert.True(t, rec.Sequential)
	require.NotNil(t, rec.Step)
	assert.Equal(t, StepRecord{Number: 2, Name: "build", Status: "complete"}, *rec.Step)
	assert.Equal(t, 1500*time.Millisecond, rec.Duration())
	assert.Equal(t, time.UTC, rec.At.Location())

	kind, ok := rec.EventKind()
	assert.True(t, ok)
	assert.Equal(t, taskqueue.EventStepComplete, kind)
}

func TestNewRecord_QueueEvent(t *testing.T) {
	rec := NewRecord("deploy", "", taskqueue.Event{
		Kind: taskqueue.EventTimeout,
		Log: []taskqueue.LogEntry{
			{Name: "Step 1", Status: "running"},
			{Name: "Step 2", Status: taskqueue.NotStarted},
		},
	})

	assert.Nil(t, rec.Step)
	assert.Empty(t, rec.RunID)
	assert.Len(t, rec.Log, 2)

	data, err := Encode(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"NOT STARTED"`)
	assert.NotContains(t, string(data), `"step"`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Log, decoded.Log)
	assert.Equal(t, "timeout", decoded.Kind)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "hello"},
		{"unknown kind", `{"kind":"finished","queue":"q"}`},
		{"missing kind", `{"queue":"q"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}
