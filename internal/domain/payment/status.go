package payment

import (
	"strings"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusAuthorized        Status = "AUTHORIZED"
	StatusPartiallyCaptured Status = "PARTIALLY_CAPTURED"
	StatusCaptured          Status = "CAPTURED"
	StatusFailed            Status = "FAILED"
	StatusVoided            Status = "VOIDED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
)

var statusDescriptions = map[Status]string{
	StatusPending:           "Payment created, awaiting authorization",
	StatusAuthorized:        "Funds reserved by the gateway, not yet captured",
	StatusPartiallyCaptured: "Part of the authorized amount has been captured",
	StatusCaptured:          "The full authorized amount has been captured",
	StatusFailed:            "Payment failed",
	StatusVoided:            "Authorization cancelled before capture",
	StatusRefunded:          "Captured funds have been returned",
	StatusPartiallyRefunded: "Part of the captured funds have been returned",
}

// ActiveStatuses are the statuses that block a new attempt for the same invoice.
var ActiveStatuses = []Status{StatusPending, StatusAuthorized, StatusPartiallyCaptured, StatusCaptured}

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusAuthorized, StatusPartiallyCaptured, StatusCaptured,
	StatusFailed, StatusVoided, StatusRefunded, StatusPartiallyRefunded,
}

// ParseStatus converts a persisted or wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := statusDescriptions[st]; !ok {
		return "", domainErrors.InvalidArgument("status", "unknown payment status %q", s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// Description is a human-readable explanation of the status.
func (s Status) Description() string { return statusDescriptions[s] }

func (s Status) CanBeAuthorized() bool { return s == StatusPending }

func (s Status) CanBeCaptured() bool {
	return s == StatusAuthorized || s == StatusPartiallyCaptured
}

func (s Status) CanBeVoided() bool {
	return s == StatusAuthorized || s == StatusPartiallyCaptured
}

// CanBeRefunded is informational; refund workflows are not implemented.
func (s Status) CanBeRefunded() bool {
	return s == StatusCaptured || s == StatusPartiallyRefunded
}

// IsActive reports whether the status blocks a new payment for the same invoice.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusAuthorized, StatusPartiallyCaptured, StatusCaptured:
		return true
	}
	return false
}

// IsTerminal reports whether an invoice may be retried after this status.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusVoided || s == StatusRefunded
}
