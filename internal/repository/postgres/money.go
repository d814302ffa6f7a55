package postgres

import (
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/money"
)

// parseMoney reads a NUMERIC(19,2) column scanned as text.
func parseMoney(s, currency string) (money.Money, error) {
	return money.OfString(s, currency)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
