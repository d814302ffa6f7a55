package payment_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	domainPayment "github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestInvoiceLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := testutil.NewHarness()
	deps := h.Deps()

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(deps).Execute(ctx, createCmd("inv-1"))
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusAuthorized, res.Status)
	assert.Equal(t, "100.00", res.AuthorizedAmount.StringFixed(2))
	assert.Equal(t, "gw_ref_1", res.GatewayReferenceID)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, res.AuthorizedAt.Add(7*24*time.Hour), *res.ExpiresAt)
	assert.Equal(t, []string{domainPayment.EventTypeAuthorized}, h.EventBus.EventTypes())

	capture := paymentApp.NewCapturePaymentUseCase(deps)

	res, err = capture.Execute(ctx, paymentApp.CapturePaymentCommand{PaymentID: res.PaymentID, Amount: decPtr("60.00")})
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusPartiallyCaptured, res.Status)
	assert.Equal(t, "60.00", res.CapturedAmount.StringFixed(2))
	assert.Equal(t, []string{domainPayment.EventTypeAuthorized, domainPayment.EventTypeCaptured}, h.EventBus.EventTypes())

	res, err = capture.Execute(ctx, paymentApp.CapturePaymentCommand{PaymentID: res.PaymentID, Amount: decPtr("40.00")})
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusCaptured, res.Status)
	assert.Equal(t, "100.00", res.CapturedAmount.StringFixed(2))

	_, err = capture.Execute(ctx, paymentApp.CapturePaymentCommand{PaymentID: res.PaymentID, Amount: decPtr("0.01")})
	assert.ErrorIs(t, err, domainErrors.ErrInsufficientAuthorization)

	stored, ok := h.Repo.Stored(res.PaymentID)
	require.True(t, ok)
	assert.Equal(t, domainPayment.StatusCaptured, stored.Status)
	assert.Equal(t, "100.00", stored.CapturedAmount.StringFixed())
	assert.Len(t, h.EventBus.Batches(), 3)
	assert.Len(t, h.Gateway.CaptureCalls(), 2)
}

func TestCreateAndAuthorize_GatewayRequest(t *testing.T) {
	h := testutil.NewHarness()

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()).Execute(context.Background(), createCmd("inv-1"))
	require.NoError(t, err)

	calls := h.Gateway.AuthorizeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, res.PaymentID, calls[0].PaymentID)
	assert.Equal(t, "cus_1", calls[0].CustomerID)
	assert.Equal(t, "pm_good", calls[0].PaymentMethodID)
	assert.Equal(t, "100.00 USD", calls[0].Amount.String())
}

func TestCreateAndAuthorize_Declined(t *testing.T) {
	h := testutil.NewHarness()
	h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
		return "", domainErrors.NewGatewayError("authorize", "card_declined", "insufficient funds")
	}

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()).Execute(context.Background(), createCmd("inv-1"))
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusFailed, res.Status)
	assert.Equal(t, "card_declined: insufficient funds", res.FailureReason)

	assert.Equal(t, []string{domainPayment.EventTypeFailed}, h.EventBus.EventTypes())
	assert.Empty(t, h.Gateway.VoidCalls())

	stored, _ := h.Repo.Stored(res.PaymentID)
	assert.Equal(t, domainPayment.StatusFailed, stored.Status)
}

func TestCreateAndAuthorize_RequiresMethodAndCustomer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*paymentApp.CreatePaymentCommand)
	}{
		{"no method", func(c *paymentApp.CreatePaymentCommand) { c.PaymentMethodID = "" }},
		{"no customer", func(c *paymentApp.CreatePaymentCommand) { c.CustomerID = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testutil.NewHarness()
			cmd := createCmd("inv-1")
			tt.mutate(&cmd)

			_, err := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()).Execute(context.Background(), cmd)
			assert.ErrorIs(t, err, domainErrors.ErrInvalidArgument)
			assert.Empty(t, h.Gateway.AuthorizeCalls())
		})
	}
}

func TestCreateAndAuthorize_GuardsSkipGateway(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		h := testutil.NewHarness()
		h.Repo.AddPayment(testutil.NewTestPayment("inv-1", "100.00", "USD"))

		_, err := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()).Execute(context.Background(), createCmd("inv-1"))
		assert.ErrorIs(t, err, domainErrors.ErrDuplicatePayment)
		assert.Empty(t, h.Gateway.AuthorizeCalls())
	})

	t.Run("eleventh attempt", func(t *testing.T) {
		h := testutil.NewHarness()
		uc := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps())
		h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
			return "", domainErrors.NewGatewayError("authorize", "card_declined", "declined")
		}
		for i := 0; i < 10; i++ {
			res, err := uc.Execute(context.Background(), createCmd("inv-1"))
			require.NoError(t, err)
			require.Equal(t, domainPayment.StatusFailed, res.Status)
		}

		_, err := uc.Execute(context.Background(), createCmd("inv-1"))
		assert.ErrorIs(t, err, domainErrors.ErrTooManyPaymentAttempts)
		assert.Len(t, h.Gateway.AuthorizeCalls(), 10)
	})
}

func TestCreateAndAuthorize_PublishFailureKeepsState(t *testing.T) {
	h := testutil.NewHarness()
	h.EventBus.PublishFunc = func(ctx context.Context, events []domainPayment.Event) error {
		return errors.New("redis unavailable")
	}

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()).Execute(context.Background(), createCmd("inv-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrEventPublish)
	assert.True(t, paymentApp.IsPublishFailure(err))
	require.NotNil(t, res)
	assert.Equal(t, domainPayment.StatusAuthorized, res.Status)

	stored, _ := h.Repo.Stored(res.PaymentID)
	assert.Equal(t, domainPayment.StatusAuthorized, stored.Status)
}

func TestCreateAndAuthorize_RecordFailureVoidsAuthorization(t *testing.T) {
	h := testutil.NewHarness()
	saveErr := errors.New("connection reset")
	h.Repo.BeforeSave = func(p *domainPayment.Payment) error {
		if p.Status() == domainPayment.StatusAuthorized {
			return saveErr
		}
		return nil
	}

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(h.Deps()).Execute(context.Background(), createCmd("inv-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, saveErr)
	assert.Nil(t, res)

	assert.Equal(t, []string{"gw_ref_1"}, h.Gateway.VoidCalls())
	assert.Equal(t, []string{domainPayment.EventTypeFailed}, h.EventBus.EventTypes())

	latest, err := h.Repo.FindLatestByInvoiceID(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusFailed, latest.Status())
	assert.Contains(t, latest.FailureReason(), "connection reset")

	failed, ok := h.EventBus.Events()[0].(domainPayment.Failed)
	require.True(t, ok)
	assert.Equal(t, latest.ID(), failed.PaymentID())
	assert.Equal(t, latest.FailureReason(), failed.Reason)
}

func TestCreateAndAuthorize_RecordFailureLogsFailedVoid(t *testing.T) {
	h := testutil.NewHarness()
	h.Repo.BeforeSave = func(p *domainPayment.Payment) error {
		if p.Status() == domainPayment.StatusAuthorized {
			return errors.New("connection reset")
		}
		return nil
	}
	h.Gateway.VoidFunc = func(ctx context.Context, ref string) error {
		return domainErrors.NewGatewayError("void", "processor_unavailable", "try later")
	}
	var logs bytes.Buffer
	deps := h.Deps()
	deps.Logger = zerolog.New(&logs)

	_, err := paymentApp.NewCreateAndAuthorizeUseCase(deps).Execute(context.Background(), createCmd("inv-1"))
	require.Error(t, err)

	assert.Contains(t, logs.String(), `"compensation_error"`)
	assert.Contains(t, logs.String(), "processor_unavailable")
	assert.Contains(t, logs.String(), `"gateway_reference_id":"gw_ref_1"`)
}

func TestCreateAndAuthorize_AuthorizationAlreadyRecordedByWebhook(t *testing.T) {
	h := testutil.NewHarness()
	deps := h.Deps()
	webhook := paymentApp.NewAuthorizePaymentUseCase(deps)
	h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
		// the confirmation lands while the synchronous call is still in flight
		_, err := webhook.Execute(ctx, paymentApp.AuthorizePaymentCommand{PaymentID: req.PaymentID, GatewayReferenceID: "gw_ref_1"})
		require.NoError(t, err)
		return "gw_ref_1", nil
	}

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(deps).Execute(context.Background(), createCmd("inv-1"))
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusAuthorized, res.Status)
	assert.Equal(t, "gw_ref_1", res.GatewayReferenceID)

	assert.Empty(t, h.Gateway.VoidCalls())
	assert.Equal(t, []string{domainPayment.EventTypeAuthorized}, h.EventBus.EventTypes())

	stored, ok := h.Repo.Stored(res.PaymentID)
	require.True(t, ok)
	assert.Equal(t, domainPayment.StatusAuthorized, stored.Status)
	assert.Equal(t, "gw_ref_1", stored.GatewayReferenceID)
}

func TestCreateAndAuthorize_ConflictWithOtherReferenceCompensates(t *testing.T) {
	h := testutil.NewHarness()
	deps := h.Deps()
	webhook := paymentApp.NewAuthorizePaymentUseCase(deps)
	h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
		_, err := webhook.Execute(ctx, paymentApp.AuthorizePaymentCommand{PaymentID: req.PaymentID, GatewayReferenceID: "gw_other"})
		require.NoError(t, err)
		return "gw_ref_1", nil
	}

	_, err := paymentApp.NewCreateAndAuthorizeUseCase(deps).Execute(context.Background(), createCmd("inv-1"))
	assert.ErrorIs(t, err, domainErrors.ErrOptimisticLockFailed)
	assert.Equal(t, []string{"gw_ref_1"}, h.Gateway.VoidCalls())
}

func TestCreateAndAuthorize_GatewayTimeout(t *testing.T) {
	h := testutil.NewHarness()
	h.Gateway.AuthorizeFunc = func(ctx context.Context, req paymentApp.AuthorizeRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	deps := h.Deps()
	deps.Policy.GatewayTimeout = 20 * time.Millisecond

	res, err := paymentApp.NewCreateAndAuthorizeUseCase(deps).Execute(context.Background(), createCmd("inv-1"))
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusFailed, res.Status)
	assert.Contains(t, res.FailureReason, "deadline exceeded")
}
