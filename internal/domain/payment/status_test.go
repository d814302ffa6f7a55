package payment_test

import (
	"testing"

	"github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status    payment.Status
		authorize bool
		capture   bool
		void      bool
		refund    bool
		active    bool
		terminal  bool
	}{
		{payment.StatusPending, true, false, false, false, true, false},
		{payment.StatusAuthorized, false, true, true, false, true, false},
		{payment.StatusPartiallyCaptured, false, true, true, false, true, false},
		{payment.StatusCaptured, false, false, false, true, true, false},
		{payment.StatusFailed, false, false, false, false, false, true},
		{payment.StatusVoided, false, false, false, false, false, true},
		{payment.StatusRefunded, false, false, false, false, false, true},
		{payment.StatusPartiallyRefunded, false, false, false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.authorize, tt.status.CanBeAuthorized())
			assert.Equal(t, tt.capture, tt.status.CanBeCaptured())
			assert.Equal(t, tt.void, tt.status.CanBeVoided())
			assert.Equal(t, tt.refund, tt.status.CanBeRefunded())
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.NotEmpty(t, tt.status.Description())
		})
	}
}

func TestActiveStatuses(t *testing.T) {
	for _, s := range payment.AllStatuses {
		assert.Equal(t, s.IsActive(), contains(payment.ActiveStatuses, s), s)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := payment.ParseStatus(" partially_captured ")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPartiallyCaptured, s)

	_, err = payment.ParseStatus("settled")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func contains(list []payment.Status, s payment.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
