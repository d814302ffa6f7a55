package controller

import (
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/config"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/invoicepay/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Database     Pinger
	Redis        Pinger
	GatewayState func() string
	Payments     PaymentUseCases
	Authorize    *paymentApp.AuthorizePaymentUseCase
	Metrics      *observability.Metrics
	// Gatherer serves /metrics; nil means the default registry.
	Gatherer      prometheus.Gatherer
	CORSConfig    config.CORSConfig
	RateLimit     config.RateLimitConfig
	JWTSecret     string
	WebhookSecret string
	Logger        zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SignatureHeader},
		ExposedHeaders:   []string{"Warning"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Database, deps.Redis, deps.GatewayState)
	paymentH := NewPaymentController(deps.Payments, deps.Metrics)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Webhooks authenticate with a body signature, not a bearer token.
	if deps.WebhookSecret != "" && deps.Authorize != nil {
		webhookH := NewWebhookController(deps.Authorize, deps.WebhookSecret, deps.Logger)
		r.Post("/webhooks/gateway", webhookH.HandleGateway)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.RateLimit.Requests, deps.RateLimit.Window))
		if deps.JWTSecret != "" {
			r.Use(customMW.RequireAuth(deps.JWTSecret))
		}

		// Payments
		r.Post("/payments", paymentH.CreatePayment)
		r.Post("/payments/pending", paymentH.CreatePendingPayment)
		r.Post("/payments/retry", paymentH.RetryPayment)
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.Post("/payments/{id}/capture", paymentH.CapturePayment)
		r.Post("/payments/{id}/void", paymentH.VoidPayment)

		// Invoices
		r.Get("/invoices/{invoiceId}/payments", paymentH.ListInvoicePayments)
	})

	return r
}
