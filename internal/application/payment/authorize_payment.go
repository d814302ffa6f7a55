package payment

import (
	"context"

	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
)

// AuthorizePaymentCommand records an authorization the gateway already decided.
type AuthorizePaymentCommand struct {
	PaymentID          uuid.UUID
	GatewayReferenceID string
}

// AuthorizePaymentUseCase applies an asynchronous authorization confirmation,
// typically delivered by a gateway webhook. It never calls the gateway.
type AuthorizePaymentUseCase struct {
	orchestrator
}

// NewAuthorizePaymentUseCase creates a new AuthorizePaymentUseCase.
func NewAuthorizePaymentUseCase(deps Deps) *AuthorizePaymentUseCase {
	return &AuthorizePaymentUseCase{orchestrator: newOrchestrator(deps)}
}

// Execute authorizes the payment. A repeated confirmation fails with
// ErrIllegalPaymentState, which callers treat as a benign duplicate.
func (uc *AuthorizePaymentUseCase) Execute(ctx context.Context, cmd AuthorizePaymentCommand) (*PaymentResult, error) {
	var p *payment.Payment
	err := uc.withLock(ctx, paymentLockKey(cmd.PaymentID), func(ctx context.Context) error {
		return uc.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			if p, err = uc.Repo.FindByIDForUpdate(txCtx, cmd.PaymentID); err != nil {
				return err
			}
			if err := p.Authorize(cmd.GatewayReferenceID); err != nil {
				return err
			}
			return uc.Repo.Save(txCtx, p)
		})
	})
	if err != nil {
		return nil, err
	}

	uc.Logger.Info().
		Str("payment_id", p.ID().String()).
		Str("gateway_reference_id", p.GatewayReferenceID()).
		Msg("Payment authorization recorded")
	return ToResult(p), uc.publish(ctx, p)
}
