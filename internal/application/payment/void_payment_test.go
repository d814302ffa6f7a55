package payment_test

import (
	"context"
	"testing"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	domainPayment "github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoidPayment_Success(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewAuthorizedPayment("inv-1", "100.00", "USD")
	h.Repo.AddPayment(p)

	res, err := paymentApp.NewVoidPaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.VoidPaymentCommand{PaymentID: p.ID()})
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusVoided, res.Status)
	assert.Equal(t, []string{"gw_ref_seed"}, h.Gateway.VoidCalls())
	assert.Equal(t, []string{domainPayment.EventTypeVoided}, h.EventBus.EventTypes())
}

func TestVoidPayment_AfterPartialCapture(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewAuthorizedPayment("inv-1", "100.00", "USD")
	require.NoError(t, p.Capture(money.MustOf("30.00", "USD")))
	p.DrainEvents()
	h.Repo.AddPayment(p)

	res, err := paymentApp.NewVoidPaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.VoidPaymentCommand{PaymentID: p.ID()})
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusVoided, res.Status)
	assert.Equal(t, "30.00", res.CapturedAmount.StringFixed(2))
}

func TestVoidPayment_InvalidStateSkipsGateway(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewTestPayment("inv-1", "100.00", "USD")
	h.Repo.AddPayment(p)

	_, err := paymentApp.NewVoidPaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.VoidPaymentCommand{PaymentID: p.ID()})
	assert.ErrorIs(t, err, domainErrors.ErrIllegalPaymentState)
	assert.Empty(t, h.Gateway.VoidCalls())
}

func TestVoidPayment_GatewayFailure(t *testing.T) {
	h := testutil.NewHarness()
	p := testutil.NewAuthorizedPayment("inv-1", "100.00", "USD")
	h.Repo.AddPayment(p)
	h.Gateway.VoidFunc = func(ctx context.Context, ref string) error {
		return domainErrors.NewGatewayError("void", "already_captured", "cannot void")
	}

	_, err := paymentApp.NewVoidPaymentUseCase(h.Deps()).Execute(context.Background(), paymentApp.VoidPaymentCommand{PaymentID: p.ID()})
	assert.ErrorIs(t, err, domainErrors.ErrGateway)

	stored, _ := h.Repo.Stored(p.ID())
	assert.Equal(t, domainPayment.StatusAuthorized, stored.Status)
	assert.Empty(t, h.EventBus.Batches())
}
