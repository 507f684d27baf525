package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster publishes channel messages to every connected socket.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) error
}

// LocalBroadcaster delivers straight to the in-process hub.
type LocalBroadcaster struct {
	hub *Hub
}

// NewLocalBroadcaster wraps hub.
func NewLocalBroadcaster(hub *Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub}
}

func (b *LocalBroadcaster) Broadcast(_ context.Context, msg Message) error {
	b.hub.Deliver(msg)
	return nil
}

const relayPattern = channelPrefix + "*"

// RedisBroadcaster publishes to Redis so every instance's hub receives the message.
// Run must be active on each instance to relay into its local hub.
type RedisBroadcaster struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRedisBroadcaster creates a broadcaster bound to client.
func NewRedisBroadcaster(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: client, hub: hub, logger: logger}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	if err := b.client.Publish(ctx, msg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Channel, err)
	}
	return nil
}

// Run relays ticket channel messages from Redis into the local hub until ctx ends.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, relayPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", relayPattern, err)
	}
	b.logger.Info("realtime relay subscribed", zap.String("pattern", relayPattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(m)
		}
	}
}

func (b *RedisBroadcaster) relay(m *redis.Message) {
	var msg Message
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		b.logger.Warn("discarding malformed broadcast", zap.String("channel", m.Channel), zap.Error(err))
		return
	}
	if msg.Channel == "" {
		msg.Channel = m.Channel
	}
	b.hub.Deliver(msg)
}
