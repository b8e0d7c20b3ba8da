package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConsumerConfig tunes the delivery stream reader.
type ConsumerConfig struct {
	Stream      string
	Group       string
	Consumer    string
	BatchSize   int64
	Block       time.Duration
	MaxAttempts int
}

// Message is one claimed stream entry.
type Message struct {
	ID       string
	Delivery DeliveryMessage
	Raw      redis.XMessage
}

// RedisConsumer reads delivery messages through a consumer group.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer ensures the consumer group exists and returns a reader.
func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	consumer := &RedisConsumer{client: client, cfg: cfg}
	if err := consumer.ensureGroup(context.Background()); err != nil {
		return nil, err
	}
	return consumer, nil
}

// MaxAttempts reports the configured retry ceiling.
func (c *RedisConsumer) MaxAttempts() int {
	return c.cfg.MaxAttempts
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Starting from "0" instead of "$" keeps messages that arrived while
	// no group existed, which matters across restarts.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read claims a batch of undelivered messages. Malformed entries are acked
// and dropped so they cannot wedge the stream.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			parsed, parseErr := parseMessage(raw)
			if parseErr != nil {
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, parsed)
		}
	}
	return messages, nil
}

// Ack marks a message as processed.
func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acks the message and re-adds it with the attempt counter bumped.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking message for requeue: %w", err)
	}

	next := msg.Delivery
	next.Attempt = msg.Delivery.Attempt + 1
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: messageValues(next, next.Attempt),
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}
	return nil
}

func parseMessage(raw redis.XMessage) (Message, error) {
	eventID, err := parseInt64(raw.Values, "event_id")
	if err != nil {
		return Message{}, err
	}
	rule, err := parseString(raw.Values, "rule")
	if err != nil {
		return Message{}, err
	}
	kind, err := parseString(raw.Values, "kind")
	if err != nil {
		return Message{}, err
	}

	attempt := 1
	if rawAttempt, ok := raw.Values["attempt"]; ok {
		parsed, err := strconv.Atoi(fmt.Sprint(rawAttempt))
		if err != nil {
			return Message{}, fmt.Errorf("parsing attempt: %w", err)
		}
		if parsed > 0 {
			attempt = parsed
		}
	}

	var channels []string
	if rawChannels, ok := raw.Values["channels"]; ok {
		joined := fmt.Sprint(rawChannels)
		if joined != "" {
			channels = strings.Split(joined, ",")
		}
	}

	return Message{
		ID: raw.ID,
		Delivery: DeliveryMessage{
			EventID:  eventID,
			Rule:     rule,
			Kind:     kind,
			Channels: channels,
			Attempt:  attempt,
		},
		Raw: raw,
	}, nil
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}
