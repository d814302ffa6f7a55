package controller

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	SignatureHeader = "X-Signature"

	WebhookPaymentSucceeded = "payment_intent.succeeded"

	maxWebhookBody = 1 << 20
)

// WebhookController receives asynchronous gateway notifications.
type WebhookController struct {
	authorize *paymentApp.AuthorizePaymentUseCase
	secret    []byte
	logger    zerolog.Logger
}

func NewWebhookController(authorize *paymentApp.AuthorizePaymentUseCase, secret string, logger zerolog.Logger) *WebhookController {
	return &WebhookController{
		authorize: authorize,
		secret:    []byte(secret),
		logger:    observability.Component(logger, "gateway_webhook"),
	}
}

// Sign returns the hex HMAC-SHA256 of body, the value expected in X-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleGateway handles POST /webhooks/gateway
func (h *WebhookController) HandleGateway(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large", Code: "invalid_body"})
		return
	}

	if !h.verify(r.Header.Get(SignatureHeader), body) {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejected webhook with bad signature")
		writeError(w, domainErrors.NewDomainError("invalid_signature", "invalid webhook signature", domainErrors.ErrUnauthorized))
		return
	}

	var req GatewayWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, domainErrors.NewValidationError("body", "invalid JSON: "+err.Error()))
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, err)
		return
	}

	if req.Type != WebhookPaymentSucceeded {
		h.logger.Debug().Str("event_type", req.Type).Msg("Ignoring webhook event")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	id, err := uuid.Parse(req.PaymentID)
	if err != nil {
		writeError(w, domainErrors.NewValidationError("payment_id", "must be a UUID"))
		return
	}

	log := h.logger.With().Str("payment_id", id.String()).Str("event_type", req.Type).Logger()

	_, err = h.authorize.Execute(r.Context(), paymentApp.AuthorizePaymentCommand{
		PaymentID:          id,
		GatewayReferenceID: req.GatewayReferenceID,
	})
	switch {
	case err == nil:
		log.Info().Msg("Webhook authorization applied")
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	case paymentApp.IsPublishFailure(err):
		log.Warn().Err(err).Msg("Webhook authorization applied, events not published")
		w.Header().Set("Warning", publishWarning)
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	case errors.Is(err, domainErrors.ErrIllegalPaymentState):
		// Gateways redeliver; a payment that already moved on is a duplicate.
		log.Info().Err(err).Msg("Duplicate webhook delivery")
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	default:
		log.Error().Err(err).Msg("Webhook authorization failed")
		writeError(w, err)
	}
}

func (h *WebhookController) verify(header string, body []byte) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
