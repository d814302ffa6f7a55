package payment

import (
	"context"
	"time"

	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Gateway is the external payment processor. Failures are reported as
// *errors.GatewayError; any other error is treated as a transport failure.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (gatewayReferenceID string, err error)
	// Capture transfers amount of an authorization. A nil amount captures it in full.
	Capture(ctx context.Context, gatewayReferenceID string, amount *money.Money) error
	Void(ctx context.Context, gatewayReferenceID string) error
}

// AuthorizeRequest is what the gateway needs to reserve funds.
type AuthorizeRequest struct {
	PaymentID       uuid.UUID
	CustomerID      string
	PaymentMethodID string
	Amount          money.Money
}

// EventBus publishes a drained batch of domain events after commit.
// Delivery is at-least-once; consumers must tolerate duplicates.
type EventBus interface {
	Publish(ctx context.Context, events []payment.Event) error
}

// Locker serializes work on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Policy holds the tunables of the orchestration layer.
type Policy struct {
	MaxAttemptsPerInvoice int
	GatewayTimeout        time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttemptsPerInvoice: 10,
		GatewayTimeout:        10 * time.Second,
	}
}

// Deps bundles the collaborators every use case needs. Locker may be nil,
// in which case serialization relies on the repository's version check.
type Deps struct {
	Repo      payment.Repository
	TxManager TransactionManager
	Gateway   Gateway
	EventBus  EventBus
	Locker    Locker
	Policy    Policy
	Logger    zerolog.Logger
}
