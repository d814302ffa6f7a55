package payment

import (
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/google/uuid"
)

// Event type tags, also used as the topic suffix when events are published.
const (
	EventTypeAuthorized = "payment.authorized"
	EventTypeCaptured   = "payment.captured"
	EventTypeFailed     = "payment.failed"
	EventTypeVoided     = "payment.voided"
)

// Event is an immutable fact recorded by a Payment after a successful transition.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredOn() time.Time
	AggregateID() uuid.UUID
	// Payload is the wire form consumed by event bus adapters.
	Payload() map[string]any
}

type eventHeader struct {
	id         uuid.UUID
	occurredOn time.Time
	paymentID  uuid.UUID
	invoiceID  InvoiceID
}

func newHeader(p *Payment, at time.Time) eventHeader {
	return eventHeader{
		id:         uuid.New(),
		occurredOn: at,
		paymentID:  p.id,
		invoiceID:  p.invoiceID,
	}
}

func (h eventHeader) EventID() uuid.UUID     { return h.id }
func (h eventHeader) OccurredOn() time.Time  { return h.occurredOn }
func (h eventHeader) AggregateID() uuid.UUID { return h.paymentID }
func (h eventHeader) PaymentID() uuid.UUID   { return h.paymentID }
func (h eventHeader) InvoiceID() InvoiceID   { return h.invoiceID }

func (h eventHeader) basePayload() map[string]any {
	return map[string]any{
		"event_id":    h.id.String(),
		"occurred_on": h.occurredOn.UTC().Format(time.RFC3339Nano),
		"payment_id":  h.paymentID.String(),
		"invoice_id":  h.invoiceID.String(),
	}
}

// Authorized is emitted when the gateway reserved the funds.
type Authorized struct {
	eventHeader
	Amount             money.Money
	GatewayReferenceID string
}

func (e Authorized) EventType() string { return EventTypeAuthorized }

func (e Authorized) Payload() map[string]any {
	p := e.basePayload()
	p["amount"] = e.Amount.StringFixed()
	p["currency"] = e.Amount.Currency()
	p["gateway_reference_id"] = e.GatewayReferenceID
	return p
}

// Captured is emitted for every successful capture, partial or full.
type Captured struct {
	eventHeader
	CapturedAmount      money.Money
	TotalCapturedAmount money.Money
}

func (e Captured) EventType() string { return EventTypeCaptured }

func (e Captured) Payload() map[string]any {
	p := e.basePayload()
	p["captured_amount"] = e.CapturedAmount.StringFixed()
	p["total_captured_amount"] = e.TotalCapturedAmount.StringFixed()
	p["currency"] = e.CapturedAmount.Currency()
	return p
}

// Failed is emitted when a pending payment could not be authorized.
type Failed struct {
	eventHeader
	Reason string
}

func (e Failed) EventType() string { return EventTypeFailed }

func (e Failed) Payload() map[string]any {
	p := e.basePayload()
	p["reason"] = e.Reason
	return p
}

// Voided is emitted when an authorization is cancelled.
type Voided struct {
	eventHeader
}

func (e Voided) EventType() string { return EventTypeVoided }

func (e Voided) Payload() map[string]any {
	return e.basePayload()
}
