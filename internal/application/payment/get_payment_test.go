package payment_test

import (
	"context"
	"testing"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPayment(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	p := testutil.NewAuthorizedPayment("inv-1", "10.00", "USD")
	repo.AddPayment(p)
	uc := paymentApp.NewGetPaymentUseCase(repo)

	res, err := uc.Execute(context.Background(), p.ID())
	require.NoError(t, err)
	assert.Equal(t, p.ID(), res.PaymentID)
	assert.Equal(t, "gw_ref_seed", res.GatewayReferenceID)

	_, err = uc.Execute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestListInvoicePayments(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	first := failedAttempt(t, "inv-1", "10.00", "USD")
	second := testutil.NewAuthorizedPayment("inv-1", "10.00", "USD")
	repo.AddPayment(first)
	repo.AddPayment(second)
	repo.AddPayment(testutil.NewTestPayment("inv-2", "5.00", "USD"))
	uc := paymentApp.NewListInvoicePaymentsUseCase(repo)

	results, err := uc.Execute(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID(), results[0].PaymentID)
	assert.Equal(t, second.ID(), results[1].PaymentID)

	results, err = uc.Execute(context.Background(), "inv-9")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = uc.Execute(context.Background(), "")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidArgument)
}
