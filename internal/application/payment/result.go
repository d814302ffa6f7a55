package payment

import (
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentResult is the read projection returned by every use case.
type PaymentResult struct {
	PaymentID          uuid.UUID
	InvoiceID          string
	PaymentMethodID    string
	Amount             decimal.Decimal
	AuthorizedAmount   decimal.Decimal
	CapturedAmount     decimal.Decimal
	Currency           string
	Status             payment.Status
	GatewayReferenceID string
	FailureReason      string
	CreatedAt          time.Time
	AuthorizedAt       *time.Time
	CapturedAt         *time.Time
	ExpiresAt          *time.Time
}

// ToResult projects an aggregate.
func ToResult(p *payment.Payment) *PaymentResult {
	return &PaymentResult{
		PaymentID:          p.ID(),
		InvoiceID:          p.InvoiceID().String(),
		PaymentMethodID:    p.PaymentMethodID().String(),
		Amount:             p.RequestedAmount().Amount(),
		AuthorizedAmount:   p.AuthorizedAmount().Amount(),
		CapturedAmount:     p.CapturedAmount().Amount(),
		Currency:           p.RequestedAmount().Currency(),
		Status:             p.Status(),
		GatewayReferenceID: p.GatewayReferenceID(),
		FailureReason:      p.FailureReason(),
		CreatedAt:          p.CreatedAt(),
		AuthorizedAt:       p.AuthorizedAt(),
		CapturedAt:         p.CapturedAt(),
		ExpiresAt:          p.ExpiresAt(),
	}
}
