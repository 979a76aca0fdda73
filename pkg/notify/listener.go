package notify

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/stepflow/pkg/common/validation"
	"github.com/vnykmshr/stepflow/pkg/logging"
)

// Subscriber is the subset of redis.UniversalClient Listen needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// ListenConfig configures Listen.
type ListenConfig struct {
	Channel string
	Logger  *slog.Logger
}

// Listen subscribes to channel and calls fn for every decodable record until
// ctx is done. Malformed payloads are logged and skipped.
func Listen(ctx context.Context, client Subscriber, channel string, fn func(Record)) error {
	return ListenWithConfig(ctx, client, ListenConfig{Channel: channel}, fn)
}

// ListenWithConfig is Listen with a custom logger.
func ListenWithConfig(ctx context.Context, client Subscriber, cfg ListenConfig, fn func(Record)) error {
	if err := validation.ValidateNotNil(module, "redis client", client); err != nil {
		return err
	}
	if err := validation.ValidateNotNil(module, "handler", fn); err != nil {
		return err
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	sub := client.Subscribe(ctx, cfg.Channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed so no message is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			rec, err := Decode([]byte(msg.Payload))
			if err != nil {
				logger.Warn("skipping malformed notification", "channel", msg.Channel, "error", err)
				continue
			}
			fn(rec)
		}
	}
}
