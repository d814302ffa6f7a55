package payment

import (
	"context"
	"strings"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// RetryPaymentCommand starts a new attempt for an invoice. Missing fields are
// taken from the invoice's most recent attempt.
type RetryPaymentCommand struct {
	InvoiceID       string
	CustomerID      string
	PaymentMethodID string
	Amount          *decimal.Decimal
	Currency        string
}

// RetryPaymentUseCase re-runs create-and-authorize under the same invoice guards.
// Prior attempts are never modified; each retry gets a new payment id.
type RetryPaymentUseCase struct {
	orchestrator
	createAndAuthorize *CreateAndAuthorizeUseCase
}

// NewRetryPaymentUseCase creates a new RetryPaymentUseCase.
func NewRetryPaymentUseCase(deps Deps) *RetryPaymentUseCase {
	return &RetryPaymentUseCase{
		orchestrator:       newOrchestrator(deps),
		createAndAuthorize: NewCreateAndAuthorizeUseCase(deps),
	}
}

// Execute fails with ErrPaymentNotFound when the invoice has no prior attempt.
func (uc *RetryPaymentUseCase) Execute(ctx context.Context, cmd RetryPaymentCommand) (*PaymentResult, error) {
	invoiceID, err := payment.NewInvoiceID(cmd.InvoiceID)
	if err != nil {
		return nil, err
	}

	latest, err := uc.Repo.FindLatestByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, domainErrors.NewDomainError("payment_not_found",
			"invoice "+invoiceID.String()+" has no payment to retry", domainErrors.ErrPaymentNotFound)
	}

	create := CreatePaymentCommand{
		InvoiceID:       invoiceID.String(),
		CustomerID:      cmd.CustomerID,
		Amount:          latest.RequestedAmount().Amount(),
		Currency:        latest.RequestedAmount().Currency(),
		PaymentMethodID: latest.PaymentMethodID().String(),
	}
	if cmd.Amount != nil {
		create.Amount = *cmd.Amount
	}
	if strings.TrimSpace(cmd.Currency) != "" {
		create.Currency = cmd.Currency
	}
	if strings.TrimSpace(cmd.PaymentMethodID) != "" {
		create.PaymentMethodID = cmd.PaymentMethodID
	}

	uc.Logger.Info().
		Str("invoice_id", invoiceID.String()).
		Str("previous_payment_id", latest.ID().String()).
		Str("previous_status", latest.Status().String()).
		Msg("Retrying payment")
	return uc.createAndAuthorize.Execute(ctx, create)
}
