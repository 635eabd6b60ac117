package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRelay republishes every locally broadcast EngineEvent to a Redis
// Pub/Sub channel, and forwards messages received on that channel into a
// local Broadcaster. This lets multiple service instances behind a load
// balancer share one logical event stream without the in-process
// Broadcaster's mutex becoming a cross-process bottleneck: Pub/Sub
// handles the distributed part, plain Go handles the local part.
type RedisRelay struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisRelay wires client to channel. Publish and Relay are
// independent; callers typically want both.
func NewRedisRelay(client *redis.Client, channel string, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{client: client, channel: channel, logger: logger}
}

// Publish sends evt to the shared channel.
func (r *RedisRelay) Publish(ctx context.Context, evt EngineEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal for relay: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish to %s: %w", r.channel, err)
	}
	return nil
}

// Relay subscribes to the shared channel and forwards decoded events into
// local until ctx is cancelled. It runs in the caller's goroutine and
// returns when the subscription ends.
func (r *RedisRelay) Relay(ctx context.Context, local *Broadcaster) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt EngineEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				r.logger.Warn("events: dropping malformed relay message", "error", err)
				continue
			}
			local.Broadcast(evt)
		}
	}
}
