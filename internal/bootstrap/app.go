package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	paymentApp "github.com/cassiomorais/invoicepay/internal/application/payment"
	"github.com/cassiomorais/invoicepay/internal/gateway"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/config"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/invoicepay/internal/infrastructure/redis"
	"github.com/cassiomorais/invoicepay/internal/repository/postgres"
	"github.com/cassiomorais/invoicepay/pkg/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	txOptions pgx.TxOptions
	tracer    *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Str("instance_id", cfg.InstanceID).Msg("Starting")

	txOptions, err := postgres.TxOptions(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, txOptions: txOptions}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Metrics = observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		app.shutdownTracer()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.Pool = pool
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		app.shutdownTracer()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	app.Redis = redisClient
	logger.Info().Msg("Connected to Redis")

	return app, nil
}

// PaymentDeps wires the payment use cases to Postgres, Redis and the simulated
// gateway behind the circuit breaker. The gateway is returned for health checks.
func (a *App) PaymentDeps() (paymentApp.Deps, *gateway.Resilient) {
	cfg := a.Config

	gw := gateway.NewResilient(
		gateway.NewSimulated(gateway.WithLatency(cfg.Gateway.SimulatedLatency)),
		gatewaySettings(cfg.Gateway),
		a.Metrics,
		a.Logger,
	)

	deps := paymentApp.Deps{
		Repo:      postgres.NewPaymentRepository(a.Pool),
		TxManager: postgres.NewTxManager(a.Pool, a.txOptions),
		Gateway:   gw,
		EventBus:  infraRedis.NewStreamEventBus(a.Redis, cfg.Events.StreamPrefix, cfg.Events.MaxLen, a.Metrics, a.Logger),
		Locker: infraRedis.NewLocker(a.Redis, infraRedis.LockerConfig{
			TTL:        cfg.Payment.LockTTL,
			Retries:    cfg.Payment.LockRetries,
			RetryDelay: cfg.Payment.LockRetryDelay,
		}, a.Metrics),
		Policy: paymentApp.Policy{
			MaxAttemptsPerInvoice: cfg.Payment.MaxAttemptsPerInvoice,
			GatewayTimeout:        cfg.Payment.GatewayTimeout,
		},
		Logger: a.Logger,
	}
	return deps, gw
}

func gatewaySettings(cfg config.GatewayConfig) gateway.Settings {
	s := gateway.DefaultSettings()
	cb := cfg.CircuitBreaker
	if cb.MaxRequests > 0 {
		s.MaxRequests = cb.MaxRequests
	}
	if cb.Interval > 0 {
		s.Interval = cb.Interval
	}
	if cb.Timeout > 0 {
		s.Timeout = cb.Timeout
	}
	if cb.FailureRatio > 0 {
		s.FailureRatio = cb.FailureRatio
	}
	if cb.MinRequests > 0 {
		s.MinRequests = cb.MinRequests
	}
	if cfg.Retry.MaxAttempts > 0 {
		s.Retry = retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		}
	}
	return s
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	a.shutdownTracer()
}

func (a *App) shutdownTracer() {
	if a.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Shutdown(ctx, a.tracer); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to flush traces")
	}
	a.tracer = nil
}
