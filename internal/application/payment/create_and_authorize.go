package payment

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/pkg/saga"
	"github.com/google/uuid"
)

const (
	stepGatewayAuthorize    = "gateway-authorize"
	stepRecordAuthorization = "record-authorization"
)

// CreateAndAuthorizeUseCase creates a payment and immediately authorizes it at
// the gateway. A gateway decline is a successful outcome with a FAILED payment.
type CreateAndAuthorizeUseCase struct {
	orchestrator
}

// NewCreateAndAuthorizeUseCase creates a new CreateAndAuthorizeUseCase.
func NewCreateAndAuthorizeUseCase(deps Deps) *CreateAndAuthorizeUseCase {
	return &CreateAndAuthorizeUseCase{orchestrator: newOrchestrator(deps)}
}

// Execute runs guards, persists PENDING, calls the gateway and persists the
// outcome. Events are published once, after the final state is stored.
func (uc *CreateAndAuthorizeUseCase) Execute(ctx context.Context, cmd CreatePaymentCommand) (*PaymentResult, error) {
	in, err := parseCreate(cmd, true)
	if err != nil {
		return nil, err
	}
	if err := requireCustomer(in.customerID); err != nil {
		return nil, err
	}

	var p *payment.Payment
	err = uc.withLock(ctx, invoiceLockKey(in.invoiceID), func(ctx context.Context) error {
		var err error
		if p, err = uc.createPending(ctx, in); err != nil {
			return err
		}
		p, err = uc.authorize(ctx, p, in.customerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ToResult(p), uc.publish(ctx, p)
}

// authorize moves a freshly stored PENDING payment to AUTHORIZED or FAILED. If
// the authorized state cannot be stored, the gateway authorization is voided.
func (uc *CreateAndAuthorizeUseCase) authorize(ctx context.Context, p *payment.Payment, customerID string) (*payment.Payment, error) {
	pending := p.Snapshot()
	var ref string

	s := saga.New("create-and-authorize").
		AddStep(saga.Step{
			Name: stepGatewayAuthorize,
			Execute: func(ctx context.Context) error {
				return uc.gatewayCall(ctx, func(gctx context.Context) error {
					var err error
					ref, err = uc.Gateway.Authorize(gctx, AuthorizeRequest{
						PaymentID:       p.ID(),
						CustomerID:      customerID,
						PaymentMethodID: p.PaymentMethodID().String(),
						Amount:          p.RequestedAmount(),
					})
					return err
				})
			},
			Compensate: func(ctx context.Context) error {
				return uc.gatewayCall(context.WithoutCancel(ctx), func(gctx context.Context) error {
					return uc.Gateway.Void(gctx, ref)
				})
			},
		}).
		AddStep(saga.Step{
			Name: stepRecordAuthorization,
			Execute: func(ctx context.Context) error {
				if err := p.Authorize(ref); err != nil {
					return err
				}
				err := uc.save(ctx, p)
				if errors.Is(err, domainErrors.ErrOptimisticLockFailed) {
					if current, ok := uc.recordedElsewhere(ctx, p.ID(), ref); ok {
						p = current
						return nil
					}
				}
				return err
			},
		})

	err := s.Execute(ctx)
	if err == nil {
		uc.Logger.Info().
			Str("payment_id", p.ID().String()).
			Str("invoice_id", p.InvoiceID().String()).
			Str("gateway_reference_id", ref).
			Msg("Payment authorized")
		return p, nil
	}

	var se *saga.Error
	if !errors.As(err, &se) {
		return nil, err
	}

	if se.Step == stepGatewayAuthorize {
		reason := failureReason(se.Err)
		uc.Logger.Warn().
			Str("payment_id", p.ID().String()).
			Str("invoice_id", p.InvoiceID().String()).
			Str("reason", reason).
			Msg("Gateway authorization failed")
		if err := p.MarkFailed(reason); err != nil {
			return nil, err
		}
		if err := uc.save(ctx, p); err != nil {
			return nil, fmt.Errorf("persist failed payment: %w", err)
		}
		return p, nil
	}

	// The gateway hold was voided unless compensation_error is set. Either way
	// the pending row is retired so the invoice is not blocked by an orphan.
	event := uc.Logger.Error().Err(se.Err).
		Str("payment_id", p.ID().String()).
		Str("invoice_id", p.InvoiceID().String()).
		Str("gateway_reference_id", ref)
	if se.CompensationErr != nil {
		event = event.AnErr("compensation_error", se.CompensationErr)
	}
	event.Msg("Failed to record authorization")

	uc.retire(context.WithoutCancel(ctx), pending, "authorization could not be recorded: "+se.Err.Error())
	return nil, err
}

// recordedElsewhere reports whether another writer, usually the gateway
// webhook, already stored this authorization. The stored payment is returned
// so that no void or second event is issued for it.
func (uc *CreateAndAuthorizeUseCase) recordedElsewhere(ctx context.Context, id uuid.UUID, ref string) (*payment.Payment, bool) {
	current, err := uc.Repo.FindByID(ctx, id)
	if err != nil {
		uc.Logger.Warn().Err(err).Str("payment_id", id.String()).Msg("Failed to reload payment after version conflict")
		return nil, false
	}
	if current.Status() == payment.StatusPending || current.GatewayReferenceID() != ref {
		return nil, false
	}
	uc.Logger.Info().
		Str("payment_id", id.String()).
		Str("gateway_reference_id", ref).
		Str("status", current.Status().String()).
		Msg("Authorization already recorded")
	return current, true
}

// retire marks the stored PENDING snapshot FAILED and publishes the resulting
// event. Failures are logged; the caller already reports the original error.
func (uc *CreateAndAuthorizeUseCase) retire(ctx context.Context, pending payment.Snapshot, reason string) {
	fallback, err := payment.Reconstitute(pending)
	if err == nil {
		err = fallback.MarkFailed(reason)
	}
	if err == nil {
		err = uc.save(ctx, fallback)
	}
	if err != nil {
		uc.Logger.Error().Err(err).Str("payment_id", pending.ID.String()).Msg("Failed to retire pending payment")
		return
	}
	// publish logs its own failures
	_ = uc.publish(ctx, fallback)
}
