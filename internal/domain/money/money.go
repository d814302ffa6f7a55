// Package money implements an immutable monetary amount bound to an ISO 4217
// currency. Amounts are held at two decimal places.
package money

import (
	"strings"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Scale is the number of fractional digits every amount is normalized to.
const Scale = 2

// Money is a value type. Every operation returns a new instance.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Of builds a Money from amount and currency code. The amount is rounded half-up
// to two decimal places. Negative amounts and unknown currencies are rejected.
func Of(amount decimal.Decimal, code string) (Money, error) {
	cur, err := parseCurrency(code)
	if err != nil {
		return Money{}, err
	}
	if amount.IsNegative() {
		return Money{}, domainErrors.InvalidArgument("amount", "must not be negative, got %s", amount.String())
	}
	return Money{amount: amount.Round(Scale), currency: cur}, nil
}

// OfString parses a decimal string such as "100.00" into Money.
func OfString(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, domainErrors.InvalidArgument("amount", "%q is not a decimal number", amount)
	}
	return Of(d, code)
}

// MustOf is like OfString but panics on error. Intended for fixtures and tests.
func MustOf(amount, code string) Money {
	m, err := OfString(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(code string) (Money, error) {
	return Of(decimal.Zero, code)
}

func parseCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", domainErrors.InvalidArgument("currency", "must not be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", domainErrors.InvalidArgument("currency", "unknown ISO 4217 code %q", code)
	}
	return unit.String(), nil
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the upper-case ISO 4217 code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero. Only Subtract can produce one.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount).Round(Scale), currency: m.currency}, nil
}

// Subtract returns m - other. The result may be negative.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount).Round(Scale), currency: m.currency}, nil
}

// IsGreaterThan reports whether m > other.
func (m Money) IsGreaterThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(other.amount), nil
}

// Equal reports value equality: same currency and same amount.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// StringFixed renders the amount with two decimals and no currency, e.g. "100.00".
func (m Money) StringFixed() string {
	return m.amount.StringFixed(Scale)
}

func (m Money) String() string {
	return m.amount.StringFixed(Scale) + " " + m.currency
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return domainErrors.NewDomainError(
			"currency_mismatch",
			"cannot combine "+m.currency+" with "+other.currency,
			domainErrors.ErrCurrencyMismatch,
		)
	}
	return nil
}
