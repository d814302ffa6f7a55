package payment

import (
	"context"

	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CapturePaymentCommand captures part or all of an authorization. A nil
// Amount captures whatever remains.
type CapturePaymentCommand struct {
	PaymentID uuid.UUID
	Amount    *decimal.Decimal
}

// CapturePaymentUseCase transfers authorized funds through the gateway.
type CapturePaymentUseCase struct {
	orchestrator
}

// NewCapturePaymentUseCase creates a new CapturePaymentUseCase.
func NewCapturePaymentUseCase(deps Deps) *CapturePaymentUseCase {
	return &CapturePaymentUseCase{orchestrator: newOrchestrator(deps)}
}

// Execute validates the capture locally, calls the gateway, then records it.
// Gateway and state-machine failures are both returned unchanged.
func (uc *CapturePaymentUseCase) Execute(ctx context.Context, cmd CapturePaymentCommand) (*PaymentResult, error) {
	var p *payment.Payment
	err := uc.withLock(ctx, paymentLockKey(cmd.PaymentID), func(ctx context.Context) error {
		var err error
		if p, err = uc.Repo.FindByID(ctx, cmd.PaymentID); err != nil {
			return err
		}

		amount := p.RemainingAmount()
		if cmd.Amount != nil {
			if amount, err = money.Of(*cmd.Amount, p.AuthorizedAmount().Currency()); err != nil {
				return err
			}
		}
		if err := p.ValidateCapture(amount); err != nil {
			return err
		}

		// nil asks the gateway for the whole authorization
		var gatewayAmount *money.Money
		if !amount.Equal(p.AuthorizedAmount()) {
			gatewayAmount = &amount
		}
		err = uc.gatewayCall(ctx, func(gctx context.Context) error {
			return uc.Gateway.Capture(gctx, p.GatewayReferenceID(), gatewayAmount)
		})
		if err != nil {
			uc.Logger.Warn().Err(err).
				Str("payment_id", p.ID().String()).
				Str("amount", amount.String()).
				Msg("Gateway capture failed")
			return err
		}

		if err := p.Capture(amount); err != nil {
			return err
		}
		return uc.save(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	uc.Logger.Info().
		Str("payment_id", p.ID().String()).
		Str("captured", p.CapturedAmount().String()).
		Str("status", p.Status().String()).
		Msg("Payment captured")
	return ToResult(p), uc.publish(ctx, p)
}
