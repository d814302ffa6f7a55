package controller

import (
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// Amounts travel as decimal strings ("125.50") so no precision is lost in JSON.

// CreatePaymentRequest holds the input for starting a payment for an invoice.
type CreatePaymentRequest struct {
	InvoiceID       string `json:"invoice_id" validate:"required,max=128"`
	CustomerID      string `json:"customer_id" validate:"omitempty,max=128"`
	PaymentMethodID string `json:"payment_method_id" validate:"omitempty,max=128"`
	Amount          string `json:"amount" validate:"required,numeric"`
	Currency        string `json:"currency" validate:"required,len=3,alpha"`
}

func (r CreatePaymentRequest) toCommand() (paymentApp.CreatePaymentCommand, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return paymentApp.CreatePaymentCommand{}, err
	}
	return paymentApp.CreatePaymentCommand{
		InvoiceID:       r.InvoiceID,
		CustomerID:      r.CustomerID,
		Amount:          amount,
		Currency:        r.Currency,
		PaymentMethodID: r.PaymentMethodID,
	}, nil
}

// CaptureRequest holds an optional partial amount. No amount captures the
// remaining authorization.
type CaptureRequest struct {
	Amount *string `json:"amount,omitempty" validate:"omitempty,numeric"`
}

// RetryPaymentRequest starts a new attempt for an invoice. Omitted fields are
// taken from the latest attempt.
type RetryPaymentRequest struct {
	InvoiceID       string  `json:"invoice_id" validate:"required,max=128"`
	CustomerID      string  `json:"customer_id" validate:"omitempty,max=128"`
	PaymentMethodID string  `json:"payment_method_id" validate:"omitempty,max=128"`
	Amount          *string `json:"amount,omitempty" validate:"omitempty,numeric"`
	Currency        string  `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}

func (r RetryPaymentRequest) toCommand() (paymentApp.RetryPaymentCommand, error) {
	cmd := paymentApp.RetryPaymentCommand{
		InvoiceID:       r.InvoiceID,
		CustomerID:      r.CustomerID,
		PaymentMethodID: r.PaymentMethodID,
		Currency:        r.Currency,
	}
	if r.Amount != nil {
		amount, err := parseAmount(*r.Amount)
		if err != nil {
			return cmd, err
		}
		cmd.Amount = &amount
	}
	return cmd, nil
}

// GatewayWebhookRequest is a notification pushed by the payment gateway.
type GatewayWebhookRequest struct {
	Type               string `json:"type" validate:"required"`
	PaymentID          string `json:"payment_id"`
	GatewayReferenceID string `json:"gateway_reference_id"`
}

// --- Response DTOs ---

// PaymentResponse represents a payment attempt in API responses.
type PaymentResponse struct {
	ID                 string     `json:"id"`
	InvoiceID          string     `json:"invoice_id"`
	PaymentMethodID    string     `json:"payment_method_id,omitempty"`
	Amount             string     `json:"amount"`
	AuthorizedAmount   string     `json:"authorized_amount"`
	CapturedAmount     string     `json:"captured_amount"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	GatewayReferenceID string     `json:"gateway_reference_id,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	AuthorizedAt       *time.Time `json:"authorized_at,omitempty"`
	CapturedAt         *time.Time `json:"captured_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// InvoicePaymentsResponse lists every attempt for one invoice, oldest first.
type InvoicePaymentsResponse struct {
	InvoiceID string            `json:"invoice_id"`
	Payments  []PaymentResponse `json:"payments"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Converters ---

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, domainErrors.NewValidationError("amount", "must be a decimal number")
	}
	return d, nil
}

func toPaymentResponse(r *paymentApp.PaymentResult) PaymentResponse {
	return PaymentResponse{
		ID:                 r.PaymentID.String(),
		InvoiceID:          r.InvoiceID,
		PaymentMethodID:    r.PaymentMethodID,
		Amount:             r.Amount.String(),
		AuthorizedAmount:   r.AuthorizedAmount.String(),
		CapturedAmount:     r.CapturedAmount.String(),
		Currency:           r.Currency,
		Status:             string(r.Status),
		GatewayReferenceID: r.GatewayReferenceID,
		FailureReason:      r.FailureReason,
		CreatedAt:          r.CreatedAt,
		AuthorizedAt:       r.AuthorizedAt,
		CapturedAt:         r.CapturedAt,
		ExpiresAt:          r.ExpiresAt,
	}
}

func toPaymentResponses(results []*paymentApp.PaymentResult) []PaymentResponse {
	out := make([]PaymentResponse, len(results))
	for i, r := range results {
		out[i] = toPaymentResponse(r)
	}
	return out
}
