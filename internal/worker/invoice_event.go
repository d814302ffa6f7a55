package worker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EventTypeInvoiceCreated = "invoice.created"
	EventTypeInvoiceRetried = "invoice.retried"
)

// ErrMalformedMessage marks stream entries that can never be processed.
var ErrMalformedMessage = errors.New("malformed invoice message")

// InvoiceEvent is an entry of the inbound invoice stream.
type InvoiceEvent struct {
	EventID         string
	Type            string
	InvoiceID       string
	CustomerID      string
	PaymentMethodID string
	Amount          *decimal.Decimal
	Currency        string
}

// ParseInvoiceEvent decodes stream values. invoice.created needs an amount
// and currency; on invoice.retried every field but the invoice id is optional.
func ParseInvoiceEvent(values map[string]any) (InvoiceEvent, error) {
	e := InvoiceEvent{
		EventID:         field(values, "event_id"),
		Type:            field(values, "event_type"),
		InvoiceID:       field(values, "invoice_id"),
		CustomerID:      field(values, "customer_id"),
		PaymentMethodID: field(values, "payment_method_id"),
		Currency:        field(values, "currency"),
	}

	if e.Type != EventTypeInvoiceCreated && e.Type != EventTypeInvoiceRetried {
		return e, fmt.Errorf("%w: unsupported event_type %q", ErrMalformedMessage, e.Type)
	}
	if e.InvoiceID == "" {
		return e, fmt.Errorf("%w: invoice_id is required", ErrMalformedMessage)
	}

	if raw := field(values, "amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return e, fmt.Errorf("%w: amount %q is not a decimal", ErrMalformedMessage, raw)
		}
		e.Amount = &amount
	}

	if e.Type == EventTypeInvoiceCreated && (e.Amount == nil || e.Currency == "") {
		return e, fmt.Errorf("%w: invoice.created requires amount and currency", ErrMalformedMessage)
	}
	return e, nil
}

func field(values map[string]any, key string) string {
	switch v := values[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
