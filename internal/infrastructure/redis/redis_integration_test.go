//go:build integration

package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/invoicepay/internal/infrastructure/redis"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	client := setupRedis(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	locker := infraRedis.NewLocker(client, infraRedis.LockerConfig{
		TTL:        time.Second,
		Retries:    2,
		RetryDelay: 10 * time.Millisecond,
	}, metrics)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "invoice:inv_1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "invoice:inv_1")
	assert.ErrorIs(t, err, domainErrors.ErrLockAcquisitionFailed)

	require.NoError(t, release(ctx))

	release2, err := locker.Acquire(ctx, "invoice:inv_1")
	require.NoError(t, err)
	require.NoError(t, release2(ctx))

	assert.Equal(t, 2.0, promtestutil.ToFloat64(metrics.LockAcquisitions.WithLabelValues("acquired")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.LockAcquisitions.WithLabelValues("contended")))
}

func TestDistributedLock_ReleaseAfterExpiry(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	lock := infraRedis.NewDistributedLock(client, "payment:p1", 20*time.Millisecond)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	assert.ErrorIs(t, lock.Release(ctx), domainErrors.ErrLockNotHeld)
	assert.False(t, lock.IsAcquired())
}

func TestStreamEventBus_Publish(t *testing.T) {
	client := setupRedis(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	bus := infraRedis.NewStreamEventBus(client, "payments:events", 1000, metrics, zerolog.Nop())
	ctx := context.Background()

	p, err := payment.New("inv_1", "pm_card", money.MustOf("10.00", "USD"))
	require.NoError(t, err)
	require.NoError(t, p.Authorize("gw_ref_1"))
	require.NoError(t, p.Capture(money.MustOf("10.00", "USD")))
	require.NoError(t, bus.Publish(ctx, p.DrainEvents()))

	entries, err := client.XRange(ctx, bus.StreamFor(payment.EventTypeCaptured), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, p.ID().String(), entries[0].Values["payment_id"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &payload))
	assert.Equal(t, "10.00", payload["total_captured_amount"])

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.EventsPublished.WithLabelValues(payment.EventTypeAuthorized)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.EventsPublished.WithLabelValues(payment.EventTypeCaptured)))
}

func TestStreamConsumer_ReadAckAndDLQ(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	consumer := infraRedis.NewStreamConsumer(client, "invoices:events", "g", "c1", 10, 50*time.Millisecond)
	require.NoError(t, consumer.CreateGroup(ctx))
	require.NoError(t, consumer.CreateGroup(ctx), "BUSYGROUP is tolerated")

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "invoices:events",
		Values: map[string]any{"event_type": "invoice.created", "invoice_id": "inv_1"},
	}).Err())

	msgs, err := consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pending, err := consumer.ReadPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	dlq := infraRedis.NewDeadLetterQueue(client, "invoices:events:dlq")
	require.NoError(t, dlq.Publish(ctx, consumer.Stream(), msgs[0], "malformed"))
	require.NoError(t, consumer.Ack(ctx, msgs[0].ID))

	pending, err = consumer.ReadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	parked, err := client.XRange(ctx, "invoices:events:dlq", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "malformed", parked[0].Values["reason"])
	assert.Equal(t, msgs[0].ID, parked[0].Values["message_id"])

	empty, err := consumer.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
