package worker

import (
	"context"
	"errors"
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Source is the consumer-group view of the invoice stream.
type Source interface {
	Stream() string
	Read(ctx context.Context) ([]redis.XMessage, error)
	ReadPending(ctx context.Context) ([]redis.XMessage, error)
	Claim(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
}

// DeadLetter receives messages that failed to parse.
type DeadLetter interface {
	Publish(ctx context.Context, source string, msg redis.XMessage, reason string) error
}

type PaymentStarter interface {
	Execute(ctx context.Context, cmd paymentApp.CreatePaymentCommand) (*paymentApp.PaymentResult, error)
}

type PaymentRetrier interface {
	Execute(ctx context.Context, cmd paymentApp.RetryPaymentCommand) (*paymentApp.PaymentResult, error)
}

// Outcome is what happened to a single message.
type Outcome string

const (
	OutcomeProcessed  Outcome = "success"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeDeadLetter Outcome = "dead_letter"
	OutcomeRedeliver  Outcome = "redeliver"
)

// Options tunes the processor loop.
type Options struct {
	ClaimInterval time.Duration
	ClaimMinIdle  time.Duration
	ReadBackoff   time.Duration
}

func DefaultOptions() Options {
	return Options{
		ClaimInterval: 30 * time.Second,
		ClaimMinIdle:  time.Minute,
		ReadBackoff:   time.Second,
	}
}

// InvoiceProcessor starts payments for invoice.created and retries them for
// invoice.retried.
type InvoiceProcessor struct {
	source  Source
	dlq     DeadLetter
	create  PaymentStarter
	retry   PaymentRetrier
	metrics *observability.Metrics
	logger  zerolog.Logger
	opts    Options
}

// NewInvoiceProcessor wires a processor. metrics may be nil.
func NewInvoiceProcessor(
	source Source,
	dlq DeadLetter,
	create PaymentStarter,
	retry PaymentRetrier,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	opts Options,
) *InvoiceProcessor {
	def := DefaultOptions()
	if opts.ClaimInterval <= 0 {
		opts.ClaimInterval = def.ClaimInterval
	}
	if opts.ClaimMinIdle <= 0 {
		opts.ClaimMinIdle = def.ClaimMinIdle
	}
	if opts.ReadBackoff <= 0 {
		opts.ReadBackoff = def.ReadBackoff
	}
	return &InvoiceProcessor{
		source:  source,
		dlq:     dlq,
		create:  create,
		retry:   retry,
		metrics: metrics,
		logger:  observability.Component(logger, "invoice_processor"),
		opts:    opts,
	}
}

// Run consumes until ctx is cancelled. Messages left pending by a previous
// run are handled first.
func (p *InvoiceProcessor) Run(ctx context.Context) error {
	if pending, err := p.source.ReadPending(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Failed to read pending messages")
	} else {
		p.HandleBatch(ctx, pending)
	}

	ticker := time.NewTicker(p.opts.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			claimed, err := p.source.Claim(ctx, p.opts.ClaimMinIdle)
			if err != nil {
				p.logger.Error().Err(err).Msg("Failed to claim idle messages")
			} else {
				p.HandleBatch(ctx, claimed)
			}
		default:
		}

		msgs, err := p.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error().Err(err).Msg("Failed to read from stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.opts.ReadBackoff):
			}
			continue
		}
		p.HandleBatch(ctx, msgs)
	}
}

func (p *InvoiceProcessor) HandleBatch(ctx context.Context, msgs []redis.XMessage) {
	for _, msg := range msgs {
		p.Handle(ctx, msg)
	}
}

// Handle processes one message and acks it unless it should be redelivered.
func (p *InvoiceProcessor) Handle(ctx context.Context, msg redis.XMessage) Outcome {
	start := time.Now()
	outcome := p.dispatch(ctx, msg)

	if outcome != OutcomeRedeliver {
		if err := p.source.Ack(ctx, msg.ID); err != nil {
			p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to ack message")
		}
	}
	if p.metrics != nil {
		p.metrics.WorkerMessagesProcessed.WithLabelValues(p.source.Stream(), string(outcome)).Inc()
		p.metrics.WorkerProcessingDuration.WithLabelValues(p.source.Stream()).Observe(time.Since(start).Seconds())
	}
	return outcome
}

func (p *InvoiceProcessor) dispatch(ctx context.Context, msg redis.XMessage) Outcome {
	event, err := ParseInvoiceEvent(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Dead-lettering malformed message")
		if dlqErr := p.dlq.Publish(ctx, p.source.Stream(), msg, err.Error()); dlqErr != nil {
			p.logger.Error().Err(dlqErr).Str("message_id", msg.ID).Msg("Failed to dead-letter message")
			return OutcomeRedeliver
		}
		return OutcomeDeadLetter
	}

	log := p.logger.With().
		Str("message_id", msg.ID).
		Str("event_id", event.EventID).
		Str("event_type", event.Type).
		Str("invoice_id", event.InvoiceID).
		Logger()

	var res *paymentApp.PaymentResult
	switch event.Type {
	case EventTypeInvoiceCreated:
		res, err = p.create.Execute(ctx, paymentApp.CreatePaymentCommand{
			InvoiceID:       event.InvoiceID,
			CustomerID:      event.CustomerID,
			Amount:          *event.Amount,
			Currency:        event.Currency,
			PaymentMethodID: event.PaymentMethodID,
		})
	case EventTypeInvoiceRetried:
		res, err = p.retry.Execute(ctx, paymentApp.RetryPaymentCommand{
			InvoiceID:       event.InvoiceID,
			CustomerID:      event.CustomerID,
			PaymentMethodID: event.PaymentMethodID,
			Amount:          event.Amount,
			Currency:        event.Currency,
		})
	}

	switch {
	case err == nil:
		log.Info().Str("payment_id", res.PaymentID.String()).Str("status", string(res.Status)).Msg("Invoice event processed")
		return OutcomeProcessed
	case paymentApp.IsPublishFailure(err):
		log.Warn().Err(err).Str("payment_id", res.PaymentID.String()).Msg("Invoice event processed, events not published")
		return OutcomeProcessed
	case isPermanent(err):
		log.Info().Err(err).Msg("Skipping invoice event")
		return OutcomeSkipped
	default:
		log.Error().Err(err).Msg("Invoice event failed, leaving for redelivery")
		return OutcomeRedeliver
	}
}

// isPermanent reports errors that a redelivery would hit again.
func isPermanent(err error) bool {
	var validationErr *domainErrors.ValidationError
	return errors.Is(err, domainErrors.ErrDuplicatePayment) ||
		errors.Is(err, domainErrors.ErrTooManyPaymentAttempts) ||
		errors.Is(err, domainErrors.ErrInvalidArgument) ||
		errors.Is(err, domainErrors.ErrCurrencyMismatch) ||
		errors.Is(err, domainErrors.ErrPaymentNotFound) ||
		errors.Is(err, domainErrors.ErrGateway) ||
		errors.As(err, &validationErr)
}
