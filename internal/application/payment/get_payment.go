package payment

import (
	"context"

	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
)

// GetPaymentUseCase loads a single payment projection.
type GetPaymentUseCase struct {
	repo payment.Repository
}

// NewGetPaymentUseCase creates a new GetPaymentUseCase.
func NewGetPaymentUseCase(repo payment.Repository) *GetPaymentUseCase {
	return &GetPaymentUseCase{repo: repo}
}

// Execute returns ErrPaymentNotFound for unknown ids.
func (uc *GetPaymentUseCase) Execute(ctx context.Context, id uuid.UUID) (*PaymentResult, error) {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToResult(p), nil
}

// ListInvoicePaymentsUseCase lists every attempt for an invoice.
type ListInvoicePaymentsUseCase struct {
	repo payment.Repository
}

// NewListInvoicePaymentsUseCase creates a new ListInvoicePaymentsUseCase.
func NewListInvoicePaymentsUseCase(repo payment.Repository) *ListInvoicePaymentsUseCase {
	return &ListInvoicePaymentsUseCase{repo: repo}
}

// Execute returns attempts oldest first; an unknown invoice yields an empty list.
func (uc *ListInvoicePaymentsUseCase) Execute(ctx context.Context, invoiceID string) ([]*PaymentResult, error) {
	id, err := payment.NewInvoiceID(invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := uc.repo.FindAllByInvoiceID(ctx, id)
	if err != nil {
		return nil, err
	}
	results := make([]*PaymentResult, 0, len(payments))
	for _, p := range payments {
		results = append(results, ToResult(p))
	}
	return results, nil
}
