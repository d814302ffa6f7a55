package payment

import (
	"context"

	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
)

// VoidPaymentCommand cancels an authorization.
type VoidPaymentCommand struct {
	PaymentID uuid.UUID
}

// VoidPaymentUseCase releases an authorization at the gateway.
type VoidPaymentUseCase struct {
	orchestrator
}

// NewVoidPaymentUseCase creates a new VoidPaymentUseCase.
func NewVoidPaymentUseCase(deps Deps) *VoidPaymentUseCase {
	return &VoidPaymentUseCase{orchestrator: newOrchestrator(deps)}
}

// Execute mirrors capture: guard, gateway, mutate, persist, publish.
func (uc *VoidPaymentUseCase) Execute(ctx context.Context, cmd VoidPaymentCommand) (*PaymentResult, error) {
	var p *payment.Payment
	err := uc.withLock(ctx, paymentLockKey(cmd.PaymentID), func(ctx context.Context) error {
		var err error
		if p, err = uc.Repo.FindByID(ctx, cmd.PaymentID); err != nil {
			return err
		}
		if err := p.ValidateVoid(); err != nil {
			return err
		}

		err = uc.gatewayCall(ctx, func(gctx context.Context) error {
			return uc.Gateway.Void(gctx, p.GatewayReferenceID())
		})
		if err != nil {
			uc.Logger.Warn().Err(err).Str("payment_id", p.ID().String()).Msg("Gateway void failed")
			return err
		}

		if err := p.Void(); err != nil {
			return err
		}
		return uc.save(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	uc.Logger.Info().Str("payment_id", p.ID().String()).Msg("Payment voided")
	return ToResult(p), uc.publish(ctx, p)
}
