package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/cassiomorais/invoicepay/internal/testutil"
	"github.com/cassiomorais/invoicepay/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	pending []redis.XMessage
	batches [][]redis.XMessage
	acked   []string
}

func (s *fakeSource) Stream() string { return "invoices:events" }

func (s *fakeSource) Read(ctx context.Context) ([]redis.XMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *fakeSource) ReadPending(ctx context.Context) ([]redis.XMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p, nil
}

func (s *fakeSource) Claim(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

func (s *fakeSource) Ack(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, id)
	return nil
}

func (s *fakeSource) Acked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acked...)
}

type fakeDLQ struct {
	reasons map[string]string
	err     error
}

func (q *fakeDLQ) Publish(ctx context.Context, source string, msg redis.XMessage, reason string) error {
	if q.err != nil {
		return q.err
	}
	if q.reasons == nil {
		q.reasons = map[string]string{}
	}
	q.reasons[msg.ID] = reason
	return nil
}

type env struct {
	h       *testutil.Harness
	source  *fakeSource
	dlq     *fakeDLQ
	metrics *observability.Metrics
	proc    *worker.InvoiceProcessor
}

func newEnv() *env {
	h := testutil.NewHarness()
	source := &fakeSource{}
	dlq := &fakeDLQ{}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	proc := worker.NewInvoiceProcessor(
		source, dlq,
		paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()),
		paymentApp.NewRetryPaymentUseCase(h.Deps()),
		metrics, zerolog.Nop(), worker.Options{ClaimInterval: time.Hour},
	)
	return &env{h: h, source: source, dlq: dlq, metrics: metrics, proc: proc}
}

func created(id, invoice string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]any{
		"event_id":          "evt_" + id,
		"event_type":        "invoice.created",
		"invoice_id":        invoice,
		"customer_id":       "cus_1",
		"amount":            "100.00",
		"currency":          "USD",
		"payment_method_id": "pm_good",
	}}
}

func TestHandle_InvoiceCreatedAuthorizes(t *testing.T) {
	e := newEnv()

	outcome := e.proc.Handle(context.Background(), created("1-0", "inv_1"))

	assert.Equal(t, worker.OutcomeProcessed, outcome)
	assert.Equal(t, []string{"1-0"}, e.source.Acked())
	assert.Equal(t, []string{payment.EventTypeAuthorized}, e.h.EventBus.EventTypes())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(e.metrics.WorkerMessagesProcessed.WithLabelValues("invoices:events", "success")))
}

func TestHandle_DuplicateIsSkipped(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	require.Equal(t, worker.OutcomeProcessed, e.proc.Handle(ctx, created("1-0", "inv_1")))
	outcome := e.proc.Handle(ctx, created("2-0", "inv_1"))

	assert.Equal(t, worker.OutcomeSkipped, outcome)
	assert.Equal(t, []string{"1-0", "2-0"}, e.source.Acked())
	assert.Len(t, e.h.Gateway.AuthorizeCalls(), 1)
}

func TestHandle_DeclineIsProcessed(t *testing.T) {
	e := newEnv()
	e.h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
		return "", domainErrors.NewGatewayError("authorize", "card_declined", "insufficient funds")
	}

	outcome := e.proc.Handle(context.Background(), created("1-0", "inv_1"))

	assert.Equal(t, worker.OutcomeProcessed, outcome)
	assert.Equal(t, []string{payment.EventTypeFailed}, e.h.EventBus.EventTypes())
}

func TestHandle_RetriedStartsNewAttempt(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
		return "", domainErrors.NewGatewayError("authorize", "card_declined", "no")
	}
	require.Equal(t, worker.OutcomeProcessed, e.proc.Handle(ctx, created("1-0", "inv_1")))

	e.h.Gateway.AuthorizeFunc = nil
	outcome := e.proc.Handle(ctx, redis.XMessage{ID: "2-0", Values: map[string]any{
		"event_type":        "invoice.retried",
		"invoice_id":        "inv_1",
		"customer_id":       "cus_1",
		"payment_method_id": "pm_other",
	}})

	assert.Equal(t, worker.OutcomeProcessed, outcome)
	calls := e.h.Gateway.AuthorizeCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pm_other", calls[1].PaymentMethodID)
	assert.Equal(t, "100.00 USD", calls[1].Amount.String())
}

func TestHandle_RetriedWithoutHistoryIsSkipped(t *testing.T) {
	e := newEnv()

	outcome := e.proc.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"event_type":  "invoice.retried",
		"invoice_id":  "inv_missing",
		"customer_id": "cus_1",
	}})

	assert.Equal(t, worker.OutcomeSkipped, outcome)
	assert.Equal(t, []string{"1-0"}, e.source.Acked())
}

func TestHandle_MalformedGoesToDLQ(t *testing.T) {
	e := newEnv()

	outcome := e.proc.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"event_type": "invoice.created",
	}})

	assert.Equal(t, worker.OutcomeDeadLetter, outcome)
	assert.Contains(t, e.dlq.reasons["1-0"], "invoice_id is required")
	assert.Equal(t, []string{"1-0"}, e.source.Acked())
	assert.Empty(t, e.h.Gateway.AuthorizeCalls())
}

func TestHandle_DLQFailureLeavesPending(t *testing.T) {
	e := newEnv()
	e.dlq.err = errors.New("redis down")

	outcome := e.proc.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{}})

	assert.Equal(t, worker.OutcomeRedeliver, outcome)
	assert.Empty(t, e.source.Acked())
}

func TestHandle_TransientErrorLeavesPending(t *testing.T) {
	e := newEnv()
	e.h.Locker.AcquireFunc = func(ctx context.Context, key string) (func(context.Context) error, error) {
		return nil, domainErrors.ErrLockAcquisitionFailed
	}

	outcome := e.proc.Handle(context.Background(), created("1-0", "inv_1"))

	assert.Equal(t, worker.OutcomeRedeliver, outcome)
	assert.Empty(t, e.source.Acked())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(e.metrics.WorkerMessagesProcessed.WithLabelValues("invoices:events", "redeliver")))
}

func TestHandle_PublishFailureStillAcks(t *testing.T) {
	e := newEnv()
	e.h.EventBus.PublishFunc = func(ctx context.Context, events []payment.Event) error {
		return errors.New("stream unavailable")
	}

	outcome := e.proc.Handle(context.Background(), created("1-0", "inv_1"))

	assert.Equal(t, worker.OutcomeProcessed, outcome)
	assert.Equal(t, []string{"1-0"}, e.source.Acked())
}

func TestRun_DrainsPendingThenNewMessages(t *testing.T) {
	e := newEnv()
	e.source.pending = []redis.XMessage{created("1-0", "inv_1")}
	e.source.batches = [][]redis.XMessage{{created("2-0", "inv_2")}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.proc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(e.source.Acked()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
	assert.Equal(t, []string{"1-0", "2-0"}, e.source.Acked())
}
