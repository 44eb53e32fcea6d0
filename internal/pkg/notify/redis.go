package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes envelopes over Redis pub/sub so every
// server instance can fan them out to its websocket clients
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: logger,
	}
}

// Publish sends event on channel. Errors are logged, never returned.
func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) {
	env, err := NewEnvelope(channel, event, payload)
	if err != nil {
		p.logger.Error("Failed to encode event",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("Failed to marshal envelope", zap.String("channel", channel), zap.Error(err))
		return
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("Event published",
		zap.String("channel", channel),
		zap.String("event", event),
	)
}
