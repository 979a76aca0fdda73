package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
	"github.com/vnykmshr/stepflow/pkg/logging"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

// fakeClient records published payloads in memory.
type fakeClient struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}

	f.mu.Lock()
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	f.mu.Unlock()

	cmd.SetVal(1)
	return cmd
}

func (f *fakeClient) records(t *testing.T) []Record {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Record, 0, len(f.payloads))
	for _, p := range f.payloads {
		r, err := Decode(p)
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func newQueue(t *testing.T) *taskqueue.Queue {
	t.Helper()
	q, err := taskqueue.NewWithConfig(taskqueue.Config{Logger: logging.Nop()})
	require.NoError(t, err)
	t.Cleanup(q.Close)
	return q
}

func TestPublisher_ForwardsQueueEvents(t *testing.T) {
	client := &fakeClient{}
	pub, err := NewPublisher(Config{Redis: client, InstanceID: "test", Logger: logging.Nop()})
	require.NoError(t, err)

	q := newQueue(t)
	require.NoError(t, pub.Attach("deploy", q))

	_, err = q.Add("build", func(*taskqueue.Handle) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.RunAndWait(ctx, true))
	require.NoError(t, pub.Close())

	var kinds []string
	for _, r := range client.records(t) {
		assert.Equal(t, "deploy", r.Queue)
		assert.Equal(t, "test", r.Instance)
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []string{"stepadded", "stepstarted", "stepcomplete", "complete"}, kinds)

	client.mu.Lock()
	for _, ch := range client.channels {
		assert.Equal(t, DefaultChannel, ch)
	}
	client.mu.Unlock()

	published, dropped, failed := pub.Stats()
	assert.Equal(t, int64(4), published)
	assert.Zero(t, dropped)
	assert.Zero(t, failed)
}

func TestPublisher_CloseDetaches(t *testing.T) {
	client := &fakeClient{}
	pub, err := NewPublisher(Config{Redis: client, Logger: logging.Nop()})
	require.NoError(t, err)

	q := newQueue(t)
	require.NoError(t, pub.Attach("q", q))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	_, err = q.Add("", func(*taskqueue.Handle) {})
	require.NoError(t, err)

	assert.Empty(t, client.records(t))
}

func TestPublisher_FailuresCounted(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	pub, err := NewPublisher(Config{Redis: client, Logger: logging.Nop()})
	require.NoError(t, err)

	q := newQueue(t)
	require.NoError(t, pub.Attach("q", q))
	_, err = q.Add("", func(*taskqueue.Handle) {})
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	published, _, failed := pub.Stats()
	assert.Zero(t, published)
	assert.Equal(t, int64(1), failed)

	err = pub.Publish(context.Background(), Record{Kind: "complete", Queue: "q"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(Config{})
	assert.True(t, sferrors.IsValidationError(err))

	pub, err := NewPublisher(Config{Redis: &fakeClient{}, Logger: logging.Nop()})
	require.NoError(t, err)
	defer pub.Close()

	assert.True(t, sferrors.IsValidationError(pub.Attach("", newQueue(t))))
	assert.True(t, sferrors.IsValidationError(pub.Attach("q", nil)))
	assert.Equal(t, DefaultChannel, pub.Channel())
}
