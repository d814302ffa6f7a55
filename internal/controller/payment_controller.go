package controller

import (
	"net/http"
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
)

// PaymentUseCases groups the payment operations exposed over HTTP.
type PaymentUseCases struct {
	CreateAndAuthorize *paymentApp.CreateAndAuthorizeUseCase
	Create             *paymentApp.CreatePaymentUseCase
	Capture            *paymentApp.CapturePaymentUseCase
	Void               *paymentApp.VoidPaymentUseCase
	Retry              *paymentApp.RetryPaymentUseCase
	Get                *paymentApp.GetPaymentUseCase
	List               *paymentApp.ListInvoicePaymentsUseCase
}

// NewPaymentUseCases builds every payment use case from one set of dependencies.
func NewPaymentUseCases(deps paymentApp.Deps) PaymentUseCases {
	return PaymentUseCases{
		CreateAndAuthorize: paymentApp.NewCreateAndAuthorizeUseCase(deps),
		Create:             paymentApp.NewCreatePaymentUseCase(deps),
		Capture:            paymentApp.NewCapturePaymentUseCase(deps),
		Void:               paymentApp.NewVoidPaymentUseCase(deps),
		Retry:              paymentApp.NewRetryPaymentUseCase(deps),
		Get:                paymentApp.NewGetPaymentUseCase(deps.Repo),
		List:               paymentApp.NewListInvoicePaymentsUseCase(deps.Repo),
	}
}

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	uc      PaymentUseCases
	metrics *observability.Metrics
}

// NewPaymentController creates a new PaymentController. metrics may be nil.
func NewPaymentController(uc PaymentUseCases, metrics *observability.Metrics) *PaymentController {
	return &PaymentController{uc: uc, metrics: metrics}
}

// CreatePayment handles POST /api/v1/payments. The payment is created and
// authorized in one call; a gateway decline answers 201 with status FAILED.
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.uc.CreateAndAuthorize.Execute(r.Context(), cmd)
	h.observe("create_and_authorize", start, res, err)
	writePayment(w, http.StatusCreated, res, err)
}

// CreatePendingPayment handles POST /api/v1/payments/pending
func (h *PaymentController) CreatePendingPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.uc.Create.Execute(r.Context(), cmd)
	h.observe("create", start, res, err)
	writePayment(w, http.StatusCreated, res, err)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.uc.Get.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(res))
}

// CapturePayment handles POST /api/v1/payments/{id}/capture
func (h *PaymentController) CapturePayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req CaptureRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := paymentApp.CapturePaymentCommand{PaymentID: id}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		cmd.Amount = &amount
	}

	res, err := h.uc.Capture.Execute(r.Context(), cmd)
	h.observe("capture", start, res, err)
	writePayment(w, http.StatusOK, res, err)
}

// VoidPayment handles POST /api/v1/payments/{id}/void
func (h *PaymentController) VoidPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.uc.Void.Execute(r.Context(), paymentApp.VoidPaymentCommand{PaymentID: id})
	h.observe("void", start, res, err)
	writePayment(w, http.StatusOK, res, err)
}

// RetryPayment handles POST /api/v1/payments/retry
func (h *PaymentController) RetryPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RetryPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.uc.Retry.Execute(r.Context(), cmd)
	h.observe("retry", start, res, err)
	writePayment(w, http.StatusCreated, res, err)
}

// ListInvoicePayments handles GET /api/v1/invoices/{invoiceId}/payments
func (h *PaymentController) ListInvoicePayments(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceId")

	results, err := h.uc.List.Execute(r.Context(), invoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InvoicePaymentsResponse{
		InvoiceID: invoiceID,
		Payments:  toPaymentResponses(results),
	})
}

func (h *PaymentController) observe(op string, start time.Time, res *paymentApp.PaymentResult, err error) {
	if h.metrics == nil {
		return
	}
	status := "error"
	if res != nil && (err == nil || paymentApp.IsPublishFailure(err)) {
		status = string(res.Status)
	}
	h.metrics.PaymentsTotal.WithLabelValues(op, status).Inc()
	h.metrics.PaymentDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
