package gateway

import (
	"context"
	"math/rand"
	"strings"
	"time"

	appPayment "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/google/uuid"
)

// Payment method and reference values with scripted outcomes.
const (
	DeclinedPaymentMethod  = "fail"
	failingReferencePrefix = "fail"
)

// Simulated is an in-process gateway used for local runs and tests. It
// declines deterministically on magic inputs and can inject random failures.
type Simulated struct {
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0
}

type SimulatedOption func(*Simulated)

func WithFailureRate(rate float64) SimulatedOption {
	return func(s *Simulated) { s.failureRate = rate }
}

func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.latency = d }
}

func WithTimeoutRate(rate float64) SimulatedOption {
	return func(s *Simulated) { s.timeoutRate = rate }
}

func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{latency: 50 * time.Millisecond}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Simulated) Authorize(ctx context.Context, req appPayment.AuthorizeRequest) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if !req.Amount.IsPositive() {
		return "", domainErrors.NewGatewayError("authorize", "INVALID_AMOUNT", "amount must be greater than 0")
	}
	if req.PaymentMethodID == DeclinedPaymentMethod {
		return "", domainErrors.NewGatewayError("authorize", "SIM_DECLINE", "payment method declined")
	}
	if err := s.inject("authorize"); err != nil {
		return "", err
	}
	return "sim_pi_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func (s *Simulated) Capture(ctx context.Context, ref string, amount *money.Money) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(ref) == "" {
		return domainErrors.NewGatewayError("capture", "INVALID_ID", "gateway reference is required")
	}
	if amount != nil && !amount.IsPositive() {
		return domainErrors.NewGatewayError("capture", "INVALID_AMOUNT", "amount must be greater than 0")
	}
	if strings.HasPrefix(ref, failingReferencePrefix) {
		return domainErrors.NewGatewayError("capture", "SIM_CAPTURE_FAILED", "capture rejected for "+ref)
	}
	return s.inject("capture")
}

func (s *Simulated) Void(ctx context.Context, ref string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(ref) == "" {
		return domainErrors.NewGatewayError("void", "INVALID_ID", "gateway reference is required")
	}
	if strings.HasPrefix(ref, failingReferencePrefix) {
		return domainErrors.NewGatewayError("void", "SIM_VOID_FAILED", "void rejected for "+ref)
	}
	return s.inject("void")
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inject returns a transport-style timeout or a processing decline at the
// configured rates.
func (s *Simulated) inject(op string) error {
	if s.timeoutRate > 0 && rand.Float64() < s.timeoutRate {
		return context.DeadlineExceeded
	}
	if s.failureRate > 0 && rand.Float64() < s.failureRate {
		return domainErrors.NewGatewayError(op, "SIM_PROCESSING_ERROR", "simulated processing failure")
	}
	return nil
}
