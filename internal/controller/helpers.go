package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// publishWarning is sent when the payment changed but its events could not be
// published.
const publishWarning = `199 - "payment events were not published"`

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrIllegalPaymentState, http.StatusConflict, "illegal_state"},
	{domainErrors.ErrOptimisticLockFailed, http.StatusConflict, "conflict"},
	{domainErrors.ErrDuplicatePayment, http.StatusConflict, "duplicate_payment"},
	{domainErrors.ErrLockAcquisitionFailed, http.StatusConflict, "locked"},
	{domainErrors.ErrInsufficientAuthorization, http.StatusUnprocessableEntity, "insufficient_authorization"},
	{domainErrors.ErrPaymentExpired, http.StatusUnprocessableEntity, "authorization_expired"},
	{domainErrors.ErrTooManyPaymentAttempts, http.StatusTooManyRequests, "too_many_attempts"},
	{domainErrors.ErrCurrencyMismatch, http.StatusBadRequest, "currency_mismatch"},
	{domainErrors.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{domainErrors.ErrGateway, http.StatusBadGateway, "gateway_error"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.err == domainErrors.ErrOptimisticLockFailed {
				resp.Error = "concurrent modification, please retry"
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

// writePayment writes a use-case result. A publish failure still carries a
// committed payment, so it is answered with status and a Warning header.
func writePayment(w http.ResponseWriter, status int, res *paymentApp.PaymentResult, err error) {
	if err != nil && !(paymentApp.IsPublishFailure(err) && res != nil) {
		writeError(w, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("payment_id", res.PaymentID.String()).Msg("payment stored, events not published")
		w.Header().Set("Warning", publishWarning)
	}
	writeJSON(w, status, toPaymentResponse(res))
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return validateStruct(dst)
}

// decodeOptional is decodeAndValidate for endpoints whose body may be empty.
func decodeOptional(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, domainErrors.NewValidationError(param, "must be a UUID")
	}
	return id, nil
}
