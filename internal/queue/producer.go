// Package queue moves pending escalation deliveries between the evaluator
// and the delivery worker over a redis stream with a consumer group, so a
// crashed worker never loses a delivery.
package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeliveryMessage describes one automation event awaiting delivery.
type DeliveryMessage struct {
	EventID  int64
	Rule     string
	Kind     string
	Channels []string
	Attempt  int
}

// Producer enqueues delivery messages.
type Producer interface {
	Enqueue(ctx context.Context, msg DeliveryMessage) error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisProducer builds a stream producer.
func NewRedisProducer(client *redis.Client, stream string, logger *zap.Logger) Producer {
	return &redisProducer{client: client, stream: stream, logger: logger}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg DeliveryMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: messageValues(msg, attempt),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	p.logger.Info("delivery enqueued",
		zap.Int64("event_id", msg.EventID),
		zap.String("rule", msg.Rule),
		zap.String("kind", msg.Kind),
		zap.Int("attempt", attempt),
	)
	return nil
}

func messageValues(msg DeliveryMessage, attempt int) map[string]any {
	values := map[string]any{
		"event_id": msg.EventID,
		"rule":     msg.Rule,
		"kind":     msg.Kind,
		"attempt":  attempt,
	}
	if len(msg.Channels) > 0 {
		values["channels"] = strings.Join(msg.Channels, ",")
	}
	return values
}
