package escalation

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/erkinov-wtf/rmbot-sub002/internal/config"
	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// StreamChannel publishes escalation payloads to a Kafka topic for
// downstream consumers (dashboards, on-call tooling).
type StreamChannel struct {
	writer *kafka.Writer
}

// NewStreamChannel builds the channel from kafka config.
func NewStreamChannel(cfg config.KafkaConfig) *StreamChannel {
	return &StreamChannel{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Kind identifies the channel.
func (c *StreamChannel) Kind() domain.ChannelKind {
	return domain.ChannelStream
}

// Deliver writes one message keyed by rule so consumers can partition per
// rule. Broker failures are always retryable.
func (c *StreamChannel) Deliver(ctx context.Context, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), false, err)
	}

	msg := kafka.Message{
		Key:   []byte(payload.Rule),
		Value: data,
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.NewDeliveryFailure(string(c.Kind()), true, err)
	}
	return nil
}

// Close releases the kafka writer.
func (c *StreamChannel) Close() error {
	return c.writer.Close()
}
