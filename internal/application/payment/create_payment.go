package payment

import (
	"context"
	"strings"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// CreatePaymentCommand holds the input for creating a payment for an invoice.
type CreatePaymentCommand struct {
	InvoiceID       string
	CustomerID      string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
}

type createInput struct {
	invoiceID       payment.InvoiceID
	paymentMethodID payment.PaymentMethodID
	customerID      string
	amount          money.Money
}

func parseCreate(cmd CreatePaymentCommand, requireMethod bool) (createInput, error) {
	invoiceID, err := payment.NewInvoiceID(cmd.InvoiceID)
	if err != nil {
		return createInput{}, err
	}
	amount, err := money.Of(cmd.Amount, cmd.Currency)
	if err != nil {
		return createInput{}, err
	}
	var methodID payment.PaymentMethodID
	if requireMethod || strings.TrimSpace(cmd.PaymentMethodID) != "" {
		if methodID, err = payment.NewPaymentMethodID(cmd.PaymentMethodID); err != nil {
			return createInput{}, err
		}
	}
	return createInput{
		invoiceID:       invoiceID,
		paymentMethodID: methodID,
		customerID:      strings.TrimSpace(cmd.CustomerID),
		amount:          amount,
	}, nil
}

// createPending runs the invoice guards and persists a new PENDING payment in
// one transaction. The caller holds the invoice lock.
func (o *orchestrator) createPending(ctx context.Context, in createInput) (*payment.Payment, error) {
	p, err := payment.New(in.invoiceID, in.paymentMethodID, in.amount)
	if err != nil {
		return nil, err
	}
	err = o.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.checkInvoiceGuards(txCtx, in.invoiceID); err != nil {
			return err
		}
		return o.Repo.Save(txCtx, p)
	})
	if err != nil {
		return nil, err
	}
	o.Logger.Info().
		Str("payment_id", p.ID().String()).
		Str("invoice_id", p.InvoiceID().String()).
		Str("amount", p.RequestedAmount().String()).
		Msg("Payment created")
	return p, nil
}

// CreatePaymentUseCase creates a PENDING payment without contacting the gateway.
type CreatePaymentUseCase struct {
	orchestrator
}

// NewCreatePaymentUseCase creates a new CreatePaymentUseCase.
func NewCreatePaymentUseCase(deps Deps) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{orchestrator: newOrchestrator(deps)}
}

// Execute validates the command, applies the invoice guards and stores the payment.
func (uc *CreatePaymentUseCase) Execute(ctx context.Context, cmd CreatePaymentCommand) (*PaymentResult, error) {
	in, err := parseCreate(cmd, false)
	if err != nil {
		return nil, err
	}

	var p *payment.Payment
	err = uc.withLock(ctx, invoiceLockKey(in.invoiceID), func(ctx context.Context) error {
		var err error
		p, err = uc.createPending(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ToResult(p), uc.publish(ctx, p)
}

func requireCustomer(id string) error {
	if id == "" {
		return domainErrors.InvalidArgument("customer_id", "must not be empty")
	}
	return nil
}
