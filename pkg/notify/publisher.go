package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/stepflow/pkg/common/validation"
	"github.com/vnykmshr/stepflow/pkg/logging"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

const module = "notify"

// DefaultChannel is the pub/sub channel used when Config.Channel is empty.
const DefaultChannel = "stepflow:events"

// Client is the subset of redis.UniversalClient a Publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Config holds publisher configuration.
type Config struct {
	// Redis client used to publish. Required.
	Redis Client

	// Channel is the pub/sub channel (default "stepflow:events").
	Channel string

	// InstanceID identifies this process in published records.
	InstanceID string

	// Buffer is the number of records held while Redis is slow (default 256).
	Buffer int

	// RedisTimeout bounds each publish (default 500ms).
	RedisTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a publisher configuration without a client.
func DefaultConfig() Config {
	return Config{
		Channel:      DefaultChannel,
		InstanceID:   generateInstanceID(),
		Buffer:       256,
		RedisTimeout: 500 * time.Millisecond,
	}
}

// generateInstanceID creates a unique identifier for this process.
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.NewString()[:8])
}

type attachment struct {
	queue *taskqueue.Queue
	subID string
}

// Publisher forwards queue events to Redis.
type Publisher struct {
	client   Client
	channel  string
	instance string
	timeout  time.Duration
	logger   *slog.Logger

	mu          sync.RWMutex
	closed      bool
	attachments []attachment
	in          chan Record
	done        chan struct{}

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewPublisher creates a publisher and starts its delivery goroutine.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := validation.ValidateNotNil(module, "redis client", cfg.Redis); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration(module, "redis timeout", cfg.RedisTimeout); err != nil {
		return nil, err
	}

	def := DefaultConfig()
	if cfg.Channel == "" {
		cfg.Channel = def.Channel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = def.InstanceID
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.RedisTimeout == 0 {
		cfg.RedisTimeout = def.RedisTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	p := &Publisher{
		client:   cfg.Redis,
		channel:  cfg.Channel,
		instance: cfg.InstanceID,
		timeout:  cfg.RedisTimeout,
		logger:   cfg.Logger.With("component", module, "channel", cfg.Channel),
		in:       make(chan Record, cfg.Buffer),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

// Channel returns the pub/sub channel records are published on.
func (p *Publisher) Channel() string { return p.channel }

// Attach forwards every event of q, labelled with name.
func (p *Publisher) Attach(name string, q *taskqueue.Queue) error {
	if err := validation.ValidateNotEmpty(module, "queue name", name); err != nil {
		return err
	}
	if err := validation.ValidateNotNil(module, "queue", q); err != nil {
		return err
	}

	id := q.OnAny(func(ev taskqueue.Event) {
		p.enqueue(NewRecord(name, p.instance, ev))
	})

	p.mu.Lock()
	p.attachments = append(p.attachments, attachment{queue: q, subID: id})
	p.mu.Unlock()
	return nil
}

// Publish sends r immediately, bypassing the buffer.
func (p *Publisher) Publish(ctx context.Context, r Record) error {
	if r.Instance == "" {
		r.Instance = p.instance
	}
	payload, err := Encode(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.Kind, err)
	}
	return nil
}

// Stats reports delivery counters.
func (p *Publisher) Stats() (published, dropped, failed int64) {
	return p.published.Load(), p.dropped.Load(), p.failed.Load()
}

func (p *Publisher) enqueue(r Record) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.in <- r:
	default:
		p.dropped.Add(1)
		p.logger.Warn("notification buffer full, dropping record", "kind", r.Kind, "queue", r.Queue)
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	for r := range p.in {
		if err := p.Publish(context.Background(), r); err != nil {
			p.failed.Add(1)
			p.logger.Error("failed to publish notification", "kind", r.Kind, "queue", r.Queue, "error", err)
			continue
		}
		p.published.Add(1)
	}
}

// Close detaches from every queue and delivers buffered records before
// returning. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	attachments := p.attachments
	p.attachments = nil
	close(p.in)
	p.mu.Unlock()

	for _, a := range attachments {
		a.queue.Off(a.subID)
	}
	<-p.done
	return nil
}
