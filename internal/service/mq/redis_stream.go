package mq

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"member-core/pkg/logger"
)

// RedisProducer implements Producer on Redis Streams. It is the development
// default; production deployments point the relay at Kafka instead.
type RedisProducer struct {
	client *redis.Client
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// Publish appends the event to the stream named after the topic.
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	values := map[string]interface{}{
		"payload": payload,
	}
	if key != "" {
		values["key"] = key
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: values,
	}).Err(); err != nil {
		logger.Error("redis stream publish failed", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}
