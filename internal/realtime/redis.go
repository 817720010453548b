package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "agariki:conversation:"

// RedisRelay publishes events on a per-conversation Redis channel and feeds
// everything it receives into the local hub, so every server instance
// reaches its own websocket clients.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, hub: hub, logger: logger}
}

func ChannelFor(conversationID uuid.UUID) string {
	return channelPrefix + conversationID.String()
}

func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = FormatTimestamp(time.Now())
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, ChannelFor(event.ConversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run forwards relayed events to the hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to conversation channels: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("discarding malformed relayed event", zap.Error(err), zap.String("channel", msg.Channel))
				continue
			}
			if !strings.HasSuffix(msg.Channel, event.ConversationID.String()) {
				r.logger.Warn("relayed event channel mismatch", zap.String("channel", msg.Channel))
				continue
			}
			if err := r.hub.Publish(ctx, event); err != nil {
				return nil
			}
		}
	}
}
