package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
)

// orchestrator holds the plumbing shared by every use case: locking,
// persistence, guards and post-commit publishing.
type orchestrator struct {
	Deps
}

func newOrchestrator(d Deps) orchestrator {
	if d.Policy.MaxAttemptsPerInvoice <= 0 || d.Policy.GatewayTimeout <= 0 {
		def := DefaultPolicy()
		if d.Policy.MaxAttemptsPerInvoice <= 0 {
			d.Policy.MaxAttemptsPerInvoice = def.MaxAttemptsPerInvoice
		}
		if d.Policy.GatewayTimeout <= 0 {
			d.Policy.GatewayTimeout = def.GatewayTimeout
		}
	}
	return orchestrator{Deps: d}
}

func invoiceLockKey(id payment.InvoiceID) string { return "invoice:" + id.String() }
func paymentLockKey(id uuid.UUID) string         { return "payment:" + id.String() }

// withLock runs fn while holding key. Without a Locker fn runs directly.
func (o *orchestrator) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if o.Locker == nil {
		return fn(ctx)
	}
	release, err := o.Locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			o.Logger.Warn().Err(relErr).Str("lock", key).Msg("Failed to release lock")
		}
	}()
	return fn(ctx)
}

func (o *orchestrator) save(ctx context.Context, p *payment.Payment) error {
	return o.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return o.Repo.Save(txCtx, p)
	})
}

// checkInvoiceGuards enforces the attempt ceiling and the one-active-payment rule.
func (o *orchestrator) checkInvoiceGuards(ctx context.Context, invoiceID payment.InvoiceID) error {
	count, err := o.Repo.CountByInvoiceID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("count payments: %w", err)
	}
	if count >= o.Policy.MaxAttemptsPerInvoice {
		o.Logger.Info().Str("invoice_id", invoiceID.String()).Int("attempts", count).Msg("Payment attempt ceiling reached")
		return domainErrors.NewDomainError(
			"too_many_attempts",
			"invoice "+invoiceID.String()+" already has "+strconv.Itoa(count)+" payment attempts",
			domainErrors.ErrTooManyPaymentAttempts,
		)
	}

	active, err := o.Repo.ExistsByInvoiceIDAndStatusIn(ctx, invoiceID, payment.ActiveStatuses...)
	if err != nil {
		return fmt.Errorf("check active payments: %w", err)
	}
	if active {
		o.Logger.Info().Str("invoice_id", invoiceID.String()).Msg("Active payment already exists")
		return domainErrors.NewDomainError(
			"duplicate_payment",
			"invoice "+invoiceID.String()+" already has an active payment",
			domainErrors.ErrDuplicatePayment,
		)
	}
	return nil
}

// publish sends one drained batch. Failures never touch committed state; the
// caller receives the projection together with an ErrEventPublish error.
func (o *orchestrator) publish(ctx context.Context, p *payment.Payment) error {
	events := p.DrainEvents()
	if len(events) == 0 || o.EventBus == nil {
		return nil
	}
	if err := o.EventBus.Publish(ctx, events); err != nil {
		o.Logger.Error().Err(err).
			Str("payment_id", p.ID().String()).
			Str("invoice_id", p.InvoiceID().String()).
			Str("event_type", events[0].EventType()).
			Int("events", len(events)).
			Msg("Failed to publish payment events")
		return fmt.Errorf("%w: %w", domainErrors.ErrEventPublish, err)
	}
	return nil
}

// gatewayCall bounds a gateway call by the configured timeout.
func (o *orchestrator) gatewayCall(ctx context.Context, fn func(ctx context.Context) error) error {
	gctx, cancel := context.WithTimeout(ctx, o.Policy.GatewayTimeout)
	defer cancel()
	return fn(gctx)
}

// failureReason renders a gateway failure as the reason stored on a FAILED payment.
func failureReason(err error) string {
	var gwErr *domainErrors.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code + ": " + gwErr.Message
	}
	return err.Error()
}

// IsPublishFailure reports whether err only signals that events could not be
// published after the state change was committed.
func IsPublishFailure(err error) bool {
	return errors.Is(err, domainErrors.ErrEventPublish)
}
