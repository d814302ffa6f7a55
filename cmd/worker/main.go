package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	"github.com/cassiomorais/invoicepay/internal/bootstrap"
	infraRedis "github.com/cassiomorais/invoicepay/internal/infrastructure/redis"
	"github.com/cassiomorais/invoicepay/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "invoicepay-worker", "invoicepay_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Use cases ---
	deps, _ := app.PaymentDeps()
	createUC := paymentApp.NewCreateAndAuthorizeUseCase(deps)
	retryUC := paymentApp.NewRetryPaymentUseCase(deps)

	// --- Invoice stream consumer ---
	workerCfg := app.Config.Worker
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		workerCfg.InvoiceStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group")
		return
	}
	dlq := infraRedis.NewDeadLetterQueue(app.Redis, workerCfg.DLQStream)

	processor := worker.NewInvoiceProcessor(consumer, dlq, createUC, retryUC, app.Metrics, app.Logger, worker.DefaultOptions())

	app.Logger.Info().
		Str("stream", consumer.Stream()).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for invoice events...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return processor.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
