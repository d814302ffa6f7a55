package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	"github.com/cassiomorais/invoicepay/internal/bootstrap"
	"github.com/cassiomorais/invoicepay/internal/controller"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "invoicepay-api", "invoicepay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Use cases ---
	deps, gw := app.PaymentDeps()
	payments := controller.NewPaymentUseCases(deps)
	authorizeUC := paymentApp.NewAuthorizePaymentUseCase(deps)

	if app.Config.Webhook.Secret == "" {
		app.Logger.Warn().Msg("Webhook secret not set, /webhooks/gateway is disabled")
	}

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Database:      app.Pool,
		Redis:         controller.RedisPinger(app.Redis),
		GatewayState:  func() string { return gw.State().String() },
		Payments:      payments,
		Authorize:     authorizeUC,
		Metrics:       app.Metrics,
		CORSConfig:    app.Config.Server.CORS,
		RateLimit:     app.Config.Server.RateLimit,
		JWTSecret:     app.Config.Auth.JWTSecret,
		WebhookSecret: app.Config.Webhook.Secret,
		Logger:        app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
