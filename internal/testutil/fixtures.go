package testutil

import (
	"time"

	appPayment "github.com/cassiomorais/invoicepay/internal/application/payment"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/rs/zerolog"
)

// Harness bundles the mocks behind a Deps value.
type Harness struct {
	Repo     *MockPaymentRepository
	Gateway  *MockGateway
	EventBus *MockEventBus
	Locker   *MockLocker
	Tx       *MockTransactionManager
}

func NewHarness() *Harness {
	return &Harness{
		Repo:     NewMockPaymentRepository(),
		Gateway:  NewMockGateway(),
		EventBus: NewMockEventBus(),
		Locker:   NewMockLocker(),
		Tx:       NewMockTransactionManager(),
	}
}

// Deps wires the harness into use-case dependencies with a silent logger.
func (h *Harness) Deps() appPayment.Deps {
	return appPayment.Deps{
		Repo:      h.Repo,
		TxManager: h.Tx,
		Gateway:   h.Gateway,
		EventBus:  h.EventBus,
		Locker:    h.Locker,
		Policy:    appPayment.DefaultPolicy(),
		Logger:    zerolog.Nop(),
	}
}

func NewTestPayment(invoiceID, amount, currency string) *payment.Payment {
	p, err := payment.New(payment.InvoiceID(invoiceID), payment.PaymentMethodID("pm_card"), money.MustOf(amount, currency))
	if err != nil {
		panic(err)
	}
	p.DrainEvents()
	return p
}

func NewAuthorizedPayment(invoiceID, amount, currency string) *payment.Payment {
	p := NewTestPayment(invoiceID, amount, currency)
	if err := p.Authorize("gw_ref_seed"); err != nil {
		panic(err)
	}
	p.DrainEvents()
	return p
}

// NewExpiredAuthorizedPayment returns an authorization whose window closed an hour ago.
func NewExpiredAuthorizedPayment(invoiceID, amount, currency string) *payment.Payment {
	s := NewAuthorizedPayment(invoiceID, amount, currency).Snapshot()
	past := time.Now().UTC().Add(-time.Hour)
	s.ExpiresAt = &past
	p, err := payment.Reconstitute(s)
	if err != nil {
		panic(err)
	}
	return p
}
