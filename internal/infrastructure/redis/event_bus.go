package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultStreamPrefix = "payments:events"

// StreamEventBus publishes payment events to one Redis stream per event
// type, "<prefix>:<event_type>". A batch is written in a single MULTI.
type StreamEventBus struct {
	client  *redis.Client
	prefix  string
	maxLen  int64
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewStreamEventBus creates a bus. maxLen <= 0 leaves streams untrimmed and
// metrics may be nil.
func NewStreamEventBus(client *redis.Client, prefix string, maxLen int64, metrics *observability.Metrics, logger zerolog.Logger) *StreamEventBus {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	return &StreamEventBus{
		client:  client,
		prefix:  prefix,
		maxLen:  maxLen,
		metrics: metrics,
		logger:  observability.Component(logger, "event_bus"),
	}
}

// StreamFor names the stream an event type is published to.
func (b *StreamEventBus) StreamFor(eventType string) string {
	return b.prefix + ":" + eventType
}

func (b *StreamEventBus) Publish(ctx context.Context, events []payment.Event) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]*redis.XAddArgs, 0, len(events))
	for _, e := range events {
		values, err := streamValues(e)
		if err != nil {
			b.countFailures(events)
			return err
		}
		args = append(args, &redis.XAddArgs{
			Stream: b.StreamFor(e.EventType()),
			MaxLen: b.maxLen,
			Approx: b.maxLen > 0,
			Values: values,
		})
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range args {
			pipe.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		b.countFailures(events)
		return fmt.Errorf("failed to publish payment events: %w", err)
	}

	for _, e := range events {
		if b.metrics != nil {
			b.metrics.EventsPublished.WithLabelValues(e.EventType()).Inc()
		}
		b.logger.Debug().
			Str("event_type", e.EventType()).
			Str("event_id", e.EventID().String()).
			Str("payment_id", e.AggregateID().String()).
			Msg("Published payment event")
	}
	return nil
}

func (b *StreamEventBus) countFailures(events []payment.Event) {
	if b.metrics == nil {
		return
	}
	for _, e := range events {
		b.metrics.EventPublishFailures.WithLabelValues(e.EventType()).Inc()
	}
}

// streamValues is the stream entry layout shared with downstream consumers.
func streamValues(e payment.Event) (map[string]any, error) {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.EventType(), err)
	}
	return map[string]any{
		"event_id":    e.EventID().String(),
		"event_type":  e.EventType(),
		"payment_id":  e.AggregateID().String(),
		"occurred_on": e.OccurredOn().UTC().Format(time.RFC3339Nano),
		"payload":     string(payload),
	}, nil
}
