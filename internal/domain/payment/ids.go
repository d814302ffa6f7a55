package payment

import (
	"strings"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
)

// InvoiceID identifies the invoice a payment settles.
type InvoiceID string

// NewInvoiceID trims the input and rejects empty values.
func NewInvoiceID(s string) (InvoiceID, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", domainErrors.InvalidArgument("invoice_id", "must not be empty")
	}
	return InvoiceID(v), nil
}

func (id InvoiceID) String() string { return string(id) }

// PaymentMethodID identifies the customer's stored payment method at the gateway.
type PaymentMethodID string

// NewPaymentMethodID trims the input and rejects empty values.
func NewPaymentMethodID(s string) (PaymentMethodID, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", domainErrors.InvalidArgument("payment_method_id", "must not be empty")
	}
	return PaymentMethodID(v), nil
}

func (id PaymentMethodID) String() string { return string(id) }
