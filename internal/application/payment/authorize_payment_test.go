package payment_test

import (
	"context"
	"testing"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	domainPayment "github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizePayment_RecordsDecision(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewTestPayment("inv-1", "50.00", "EUR")
	h.Repo.AddPayment(p)
	uc := paymentApp.NewAuthorizePaymentUseCase(h.Deps())

	res, err := uc.Execute(context.Background(), paymentApp.AuthorizePaymentCommand{PaymentID: p.ID(), GatewayReferenceID: "pi_123"})
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusAuthorized, res.Status)
	assert.Equal(t, "pi_123", res.GatewayReferenceID)
	assert.Equal(t, "EUR", res.Currency)

	assert.Empty(t, h.Gateway.AuthorizeCalls())
	events := h.EventBus.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "pi_123", events[0].Payload()["gateway_reference_id"])
}

func TestAuthorizePayment_DuplicateDelivery(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewTestPayment("inv-1", "50.00", "EUR")
	h.Repo.AddPayment(p)
	uc := paymentApp.NewAuthorizePaymentUseCase(h.Deps())
	cmd := paymentApp.AuthorizePaymentCommand{PaymentID: p.ID(), GatewayReferenceID: "pi_123"}

	_, err := uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	_, err = uc.Execute(context.Background(), cmd)
	assert.ErrorIs(t, err, domainErrors.ErrIllegalPaymentState)
	assert.Len(t, h.EventBus.Batches(), 1)
}

func TestAuthorizePayment_NotFound(t *testing.T) {
	h := testutil.NewHarness()

	_, err := paymentApp.NewAuthorizePaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.AuthorizePaymentCommand{
		PaymentID:          uuid.New(),
		GatewayReferenceID: "pi_123",
	})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestAuthorizePayment_BlankReference(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewTestPayment("inv-1", "50.00", "EUR")
	h.Repo.AddPayment(p)

	_, err := paymentApp.NewAuthorizePaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.AuthorizePaymentCommand{PaymentID: p.ID()})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidArgument)

	stored, _ := h.Repo.Stored(p.ID())
	assert.Equal(t, domainPayment.StatusPending, stored.Status)
}

func TestAuthorizePayment_LoadsForUpdateInsideTransaction(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewTestPayment("inv-1", "50.00", "EUR")
	h.Repo.AddPayment(p)

	type txMarker struct{}
	h.Tx.WithTransactionFunc = func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(context.WithValue(ctx, txMarker{}, true))
	}
	var lockedInTx bool
	h.Repo.FindByIDForUpdateFunc = func(ctx context.Context, id uuid.UUID) (*domainPayment.Payment, error) {
		lockedInTx, _ = ctx.Value(txMarker{}).(bool)
		return h.Repo.FindByID(ctx, id)
	}

	_, err := paymentApp.NewAuthorizePaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.AuthorizePaymentCommand{
		PaymentID:          p.ID(),
		GatewayReferenceID: "pi_123",
	})
	require.NoError(t, err)
	assert.True(t, lockedInTx)
}
