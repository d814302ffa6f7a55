package payment

import (
	"strings"
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/google/uuid"
)

// AuthorizationValidity is how long a gateway authorization can be captured.
const AuthorizationValidity = 7 * 24 * time.Hour

// Payment is the aggregate root for one attempt at settling an invoice.
// It is not safe for concurrent mutation; callers serialize access per id.
type Payment struct {
	id                 uuid.UUID
	invoiceID          InvoiceID
	paymentMethodID    PaymentMethodID
	requestedAmount    money.Money
	authorizedAmount   money.Money
	capturedAmount     money.Money
	status             Status
	gatewayReferenceID string
	failureReason      string
	createdAt          time.Time
	authorizedAt       *time.Time
	capturedAt         *time.Time
	expiresAt          *time.Time
	updatedAt          time.Time
	version            int

	events []Event
}

// New creates a PENDING payment for the invoice. paymentMethodID may be empty
// for flows where the gateway collects it.
func New(invoiceID InvoiceID, paymentMethodID PaymentMethodID, amount money.Money) (*Payment, error) {
	if strings.TrimSpace(invoiceID.String()) == "" {
		return nil, errors.InvalidArgument("invoice_id", "must not be empty")
	}
	if amount.Currency() == "" {
		return nil, errors.InvalidArgument("amount", "must carry a currency")
	}
	if !amount.IsPositive() {
		return nil, errors.InvalidArgument("amount", "must be greater than 0")
	}

	zero, err := money.Zero(amount.Currency())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Payment{
		id:               uuid.New(),
		invoiceID:        invoiceID,
		paymentMethodID:  paymentMethodID,
		requestedAmount:  amount,
		authorizedAmount: zero,
		capturedAmount:   zero,
		status:           StatusPending,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

func (p *Payment) ID() uuid.UUID                    { return p.id }
func (p *Payment) InvoiceID() InvoiceID             { return p.invoiceID }
func (p *Payment) PaymentMethodID() PaymentMethodID { return p.paymentMethodID }
func (p *Payment) RequestedAmount() money.Money     { return p.requestedAmount }
func (p *Payment) AuthorizedAmount() money.Money    { return p.authorizedAmount }
func (p *Payment) CapturedAmount() money.Money      { return p.capturedAmount }
func (p *Payment) Status() Status                   { return p.status }
func (p *Payment) GatewayReferenceID() string       { return p.gatewayReferenceID }
func (p *Payment) FailureReason() string            { return p.failureReason }
func (p *Payment) CreatedAt() time.Time             { return p.createdAt }
func (p *Payment) AuthorizedAt() *time.Time         { return p.authorizedAt }
func (p *Payment) CapturedAt() *time.Time           { return p.capturedAt }
func (p *Payment) ExpiresAt() *time.Time            { return p.expiresAt }
func (p *Payment) UpdatedAt() time.Time             { return p.updatedAt }
func (p *Payment) Version() int                     { return p.version }

// SyncVersion records the version a repository wrote for this aggregate.
func (p *Payment) SyncVersion(v int) { p.version = v }

// RemainingAmount is the authorized amount not yet captured.
func (p *Payment) RemainingAmount() money.Money {
	remaining, err := p.authorizedAmount.Subtract(p.capturedAmount)
	if err != nil {
		// currencies are fixed together at authorization
		return p.authorizedAmount
	}
	return remaining
}

// IsExpired reports whether the authorization window has closed.
func (p *Payment) IsExpired() bool {
	return p.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the authorization window is closed at t.
func (p *Payment) IsExpiredAt(t time.Time) bool {
	return p.expiresAt != nil && t.After(*p.expiresAt)
}

// Authorize records the gateway's reservation of the requested amount.
func (p *Payment) Authorize(gatewayReferenceID string) error {
	if !p.status.CanBeAuthorized() {
		return p.illegalState("authorize")
	}
	ref := strings.TrimSpace(gatewayReferenceID)
	if ref == "" {
		return errors.InvalidArgument("gateway_reference_id", "must not be empty")
	}
	zero, err := money.Zero(p.requestedAmount.Currency())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	expires := now.Add(AuthorizationValidity)

	p.gatewayReferenceID = ref
	p.authorizedAmount = p.requestedAmount
	p.capturedAmount = zero
	p.authorizedAt = &now
	p.expiresAt = &expires
	p.status = StatusAuthorized
	p.updatedAt = now

	p.record(Authorized{
		eventHeader:        newHeader(p, now),
		Amount:             p.authorizedAmount,
		GatewayReferenceID: ref,
	})
	return nil
}

// ValidateCapture runs every capture guard without mutating the payment.
func (p *Payment) ValidateCapture(amount money.Money) error {
	return p.validateCaptureAt(amount, time.Now())
}

func (p *Payment) validateCaptureAt(amount money.Money, at time.Time) error {
	// a fully captured payment has nothing left to capture
	if p.status == StatusCaptured {
		return errors.NewDomainError(
			"insufficient_authorization",
			"payment "+p.id.String()+" has no remaining authorization",
			errors.ErrInsufficientAuthorization,
		)
	}
	if !p.status.CanBeCaptured() {
		return p.illegalState("capture")
	}
	if p.IsExpiredAt(at) {
		return errors.NewDomainError(
			"payment_expired",
			"authorization for payment "+p.id.String()+" expired at "+p.expiresAt.Format(time.RFC3339),
			errors.ErrPaymentExpired,
		)
	}
	if amount.Currency() != p.authorizedAmount.Currency() {
		return errors.NewDomainError(
			"currency_mismatch",
			"capture currency "+amount.Currency()+" does not match authorization currency "+p.authorizedAmount.Currency(),
			errors.ErrCurrencyMismatch,
		)
	}
	if !amount.IsPositive() {
		return errors.InvalidArgument("amount", "capture amount must be greater than 0")
	}
	remaining := p.RemainingAmount()
	exceeds, err := amount.IsGreaterThan(remaining)
	if err != nil {
		return err
	}
	if exceeds {
		return errors.NewDomainError(
			"insufficient_authorization",
			"capture of "+amount.String()+" exceeds remaining "+remaining.String(),
			errors.ErrInsufficientAuthorization,
		)
	}
	return nil
}

// Capture transfers amount of the authorized funds. The payment becomes
// CAPTURED once the running total reaches the authorized amount.
func (p *Payment) Capture(amount money.Money) error {
	now := time.Now().UTC()
	if err := p.validateCaptureAt(amount, now); err != nil {
		return err
	}

	total, err := p.capturedAmount.Add(amount)
	if err != nil {
		return err
	}

	p.capturedAmount = total
	p.capturedAt = &now
	p.updatedAt = now
	if total.Equal(p.authorizedAmount) {
		p.status = StatusCaptured
	} else {
		p.status = StatusPartiallyCaptured
	}

	p.record(Captured{
		eventHeader:         newHeader(p, now),
		CapturedAmount:      amount,
		TotalCapturedAmount: total,
	})
	return nil
}

// ValidateVoid reports whether Void would succeed.
func (p *Payment) ValidateVoid() error {
	if !p.status.CanBeVoided() {
		return p.illegalState("void")
	}
	return nil
}

// Void cancels the authorization.
func (p *Payment) Void() error {
	if err := p.ValidateVoid(); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.status = StatusVoided
	p.updatedAt = now

	p.record(Voided{eventHeader: newHeader(p, now)})
	return nil
}

// MarkFailed ends a pending payment that could not be authorized.
func (p *Payment) MarkFailed(reason string) error {
	if p.status != StatusPending {
		return p.illegalState("mark as failed")
	}

	now := time.Now().UTC()
	p.status = StatusFailed
	p.failureReason = reason
	p.updatedAt = now

	p.record(Failed{eventHeader: newHeader(p, now), Reason: reason})
	return nil
}

// DrainEvents hands the recorded events to the caller in emission order and
// clears them. A second call without new transitions returns nil.
func (p *Payment) DrainEvents() []Event {
	events := p.events
	p.events = nil
	return events
}

func (p *Payment) record(e Event) {
	p.events = append(p.events, e)
}

func (p *Payment) illegalState(op string) error {
	return errors.NewDomainError(
		"illegal_state",
		"cannot "+op+" payment "+p.id.String()+" in status "+string(p.status),
		errors.ErrIllegalPaymentState,
	)
}
