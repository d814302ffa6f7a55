package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultInvoiceStream = "invoices:events"
	DefaultDLQStream     = "invoices:events:dlq"
)

// DeadLetterQueue parks messages that can never be processed.
type DeadLetterQueue struct {
	client *redis.Client
	stream string
}

func NewDeadLetterQueue(client *redis.Client, stream string) *DeadLetterQueue {
	if stream == "" {
		stream = DefaultDLQStream
	}
	return &DeadLetterQueue{client: client, stream: stream}
}

// Publish copies the original message with the reason it was rejected.
func (q *DeadLetterQueue) Publish(ctx context.Context, source string, msg redis.XMessage, reason string) error {
	original, err := json.Marshal(msg.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"source_stream": source,
			"message_id":    msg.ID,
			"reason":        reason,
			"payload":       string(original),
			"timestamp":     time.Now().Unix(),
		},
	}

	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}
	return nil
}

// StreamConsumer reads a stream as one member of a consumer group.
type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string { return c.stream }

// CreateGroup creates the group and the stream if missing.
func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read returns new messages, or nil when the block duration elapsed.
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	return c.read(ctx, ">")
}

// ReadPending returns messages delivered to this consumer but never acked.
// Used on start-up to resume after a crash.
func (c *StreamConsumer) ReadPending(ctx context.Context) ([]redis.XMessage, error) {
	return c.read(ctx, "0")
}

func (c *StreamConsumer) read(ctx context.Context, from string) ([]redis.XMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, from},
		Count:    c.batchSize,
	}
	if from == ">" {
		args.Block = c.blockDuration
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var messages []redis.XMessage
	for _, s := range streams {
		messages = append(messages, s.Messages...)
	}
	return messages, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Claim takes over messages other consumers left idle for at least minIdle.
func (c *StreamConsumer) Claim(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}
	return messages, nil
}
