package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// publishTimeout bounds how long one publish may block the turn
const publishTimeout = 2 * time.Second

// RedisPublisher emits events onto a per-user Redis pub/sub channel.
// Subscribers (the WebSocket edge, the frontend relay) are external.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a Redis-backed event emitter
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// ChannelFor returns the pub/sub channel carrying one user's event stream
func ChannelFor(userID uuid.UUID) string {
	return fmt.Sprintf("chat:events:%s", userID)
}

// Emit publishes the event. It uses its own deadline rather than the turn's
// context so a terminal error event still goes out after the turn is
// cancelled. Failures are logged and dropped.
func (p *RedisPublisher) Emit(_ context.Context, userID uuid.UUID, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("event_marshal_failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		p.logger.Warn("event_publish_failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

var _ Emitter = (*RedisPublisher)(nil)
