package payment

import (
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/google/uuid"
)

// Snapshot is the full persisted state of a Payment. Adapters read it through
// Payment.Snapshot and rebuild aggregates with Reconstitute.
type Snapshot struct {
	ID                 uuid.UUID
	InvoiceID          InvoiceID
	PaymentMethodID    PaymentMethodID
	RequestedAmount    money.Money
	AuthorizedAmount   money.Money
	CapturedAmount     money.Money
	Status             Status
	GatewayReferenceID string
	FailureReason      string
	CreatedAt          time.Time
	AuthorizedAt       *time.Time
	CapturedAt         *time.Time
	ExpiresAt          *time.Time
	UpdatedAt          time.Time
	Version            int
}

// Snapshot exports the current state. Pending events are not part of it.
func (p *Payment) Snapshot() Snapshot {
	return Snapshot{
		ID:                 p.id,
		InvoiceID:          p.invoiceID,
		PaymentMethodID:    p.paymentMethodID,
		RequestedAmount:    p.requestedAmount,
		AuthorizedAmount:   p.authorizedAmount,
		CapturedAmount:     p.capturedAmount,
		Status:             p.status,
		GatewayReferenceID: p.gatewayReferenceID,
		FailureReason:      p.failureReason,
		CreatedAt:          p.createdAt,
		AuthorizedAt:       p.authorizedAt,
		CapturedAt:         p.capturedAt,
		ExpiresAt:          p.expiresAt,
		UpdatedAt:          p.updatedAt,
		Version:            p.version,
	}
}

// Reconstitute rebuilds a Payment from persisted state. Creation rules are not
// re-run and no events are recorded, but the state must be self-consistent.
func Reconstitute(s Snapshot) (*Payment, error) {
	if s.ID == uuid.Nil {
		return nil, errors.InvalidArgument("id", "must not be nil")
	}
	if s.InvoiceID == "" {
		return nil, errors.InvalidArgument("invoice_id", "must not be empty")
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return nil, err
	}
	if s.CapturedAmount.Currency() != s.AuthorizedAmount.Currency() {
		return nil, errors.InvalidArgument("captured_amount", "currency %q differs from authorized currency %q",
			s.CapturedAmount.Currency(), s.AuthorizedAmount.Currency())
	}
	over, err := s.CapturedAmount.IsGreaterThan(s.AuthorizedAmount)
	if err != nil {
		return nil, err
	}
	if over {
		return nil, errors.InvalidArgument("captured_amount", "%s exceeds authorized %s",
			s.CapturedAmount.String(), s.AuthorizedAmount.String())
	}

	return &Payment{
		id:                 s.ID,
		invoiceID:          s.InvoiceID,
		paymentMethodID:    s.PaymentMethodID,
		requestedAmount:    s.RequestedAmount,
		authorizedAmount:   s.AuthorizedAmount,
		capturedAmount:     s.CapturedAmount,
		status:             s.Status,
		gatewayReferenceID: s.GatewayReferenceID,
		failureReason:      s.FailureReason,
		createdAt:          s.CreatedAt,
		authorizedAt:       s.AuthorizedAt,
		capturedAt:         s.CapturedAt,
		expiresAt:          s.ExpiresAt,
		updatedAt:          s.UpdatedAt,
		version:            s.Version,
	}, nil
}
