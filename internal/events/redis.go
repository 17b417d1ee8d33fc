package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for the Redis change-event bus.
type Config struct {
	// Client is the shared Redis client.
	Client *redis.Client
	// Channel is the pub/sub channel carrying session change events.
	Channel string
	// Logger is optional; defaults to slog.Default.
	Logger *slog.Logger
}

// Bus publishes and subscribes session change events over Redis pub/sub.
type Bus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewBus validates the config and verifies the Redis connection.
func NewBus(cfg *Config) (*Bus, error) {
	if cfg == nil {
		return nil, errors.New("events: config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, errors.New("events: redis client cannot be nil")
	}
	if cfg.Channel == "" {
		return nil, errors.New("events: channel cannot be empty")
	}

	if err := cfg.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("events: failed to connect to redis: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{client: cfg.Client, channel: cfg.Channel, logger: logger}, nil
}

// PublishSessionChange pushes one event onto the channel as JSON.
func (b *Bus) PublishSessionChange(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded events. Undecodable payloads are
// logged and dropped; the stream stays open. The returned cancel function
// closes the subscription and the channel.
func (b *Bus) Subscribe(ctx context.Context) (<-chan ChangeEvent, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("events: failed to subscribe: %w", err)
	}

	out := make(chan ChangeEvent, 16)
	done := make(chan struct{})

	go func() {
		defer close(out)
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("dropping undecodable change event", "error", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}

var _ Publisher = (*Bus)(nil)
