package gateway

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	appPayment "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/cassiomorais/invoicepay/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const CodeCircuitOpen = "CIRCUIT_OPEN"

// Settings tunes the circuit breaker and the capture/void retry loop.
type Settings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
	Retry        retry.Config
}

func DefaultSettings() Settings {
	return Settings{
		Name:         "gateway",
		MaxRequests:  5,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  10,
		Retry:        retry.DefaultConfig(),
	}
}

// Resilient decorates a Gateway with a circuit breaker, tracing and metrics.
// Capture and void are retried only when the request never reached the
// processor. Authorize is never retried.
type Resilient struct {
	next    appPayment.Gateway
	breaker *gobreaker.CircuitBreaker[string]
	retry   retry.Config
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewResilient wraps next. metrics may be nil.
func NewResilient(next appPayment.Gateway, s Settings, metrics *observability.Metrics, logger zerolog.Logger) *Resilient {
	r := &Resilient{
		next:    next,
		retry:   s.Retry,
		metrics: metrics,
		tracer:  otel.Tracer("invoicepay/gateway"),
		logger:  observability.Component(logger, "gateway"),
	}
	r.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests || counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			if r.metrics != nil {
				r.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return r
}

// State reports the breaker state for health checks.
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}

func (r *Resilient) Authorize(ctx context.Context, req appPayment.AuthorizeRequest) (string, error) {
	return r.call(ctx, "authorize", func(ctx context.Context) (string, error) {
		return r.next.Authorize(ctx, req)
	}, attribute.String("payment.id", req.PaymentID.String()), attribute.String("amount", req.Amount.String()))
}

func (r *Resilient) Capture(ctx context.Context, ref string, amount *money.Money) error {
	attrs := []attribute.KeyValue{attribute.String("gateway.reference", ref)}
	if amount != nil {
		attrs = append(attrs, attribute.String("amount", amount.String()))
	}
	return r.withRetry(ctx, "capture", func() error {
		_, err := r.call(ctx, "capture", func(ctx context.Context) (string, error) {
			return "", r.next.Capture(ctx, ref, amount)
		}, attrs...)
		return err
	})
}

func (r *Resilient) Void(ctx context.Context, ref string) error {
	return r.withRetry(ctx, "void", func() error {
		_, err := r.call(ctx, "void", func(ctx context.Context) (string, error) {
			return "", r.next.Void(ctx, ref)
		}, attribute.String("gateway.reference", ref))
		return err
	})
}

func (r *Resilient) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(ctx, r.retry, fn,
		retry.If(notSent),
		retry.OnRetry(func(attempt uint, err error) {
			r.logger.Warn().Err(err).Str("operation", op).Uint("attempt", attempt+1).Msg("Retrying gateway call")
		}),
	)
}

func (r *Resilient) call(ctx context.Context, op string, fn func(ctx context.Context) (string, error), attrs ...attribute.KeyValue) (string, error) {
	ctx, span := r.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	res, err := r.breaker.Execute(func() (string, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = domainErrors.NewGatewayError(op, CodeCircuitOpen, "gateway unavailable: "+err.Error())
	}

	result := outcome(err)
	if r.metrics != nil {
		r.metrics.GatewayRequests.WithLabelValues(op, result).Inc()
		r.metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		r.metrics.CircuitBreakerRequests.WithLabelValues(r.breaker.Name(), result).Inc()
	}
	span.SetAttributes(attribute.String("gateway.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func outcome(err error) string {
	var gwErr *domainErrors.GatewayError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &gwErr) && gwErr.Code == CodeCircuitOpen:
		return "circuit_open"
	case errors.As(err, &gwErr):
		return "declined"
	default:
		return "error"
	}
}

// isHealthy reports what the breaker counts as a success: declines and caller
// cancellation included.
func isHealthy(err error) bool {
	var gwErr *domainErrors.GatewayError
	return err == nil || errors.As(err, &gwErr) || errors.Is(err, context.Canceled)
}

// notSent reports failures raised before the request left this process, so
// the processor cannot have applied it. Resets and timeouts are ambiguous and
// are returned to the caller instead.
func notSent(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
