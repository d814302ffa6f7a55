package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// Lua script for safe lock release (only owner can release)
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lock extension
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// DistributedLock is a single-owner lease on a Redis key.
type DistributedLock struct {
	client   *redis.Client
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a lock on "lock:<key>" owned by a fresh token.
func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    "lock:" + key,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock once.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = success
	return success, nil
}

// AcquireWithRetry tries up to maxRetries times, waiting retryDelay between
// attempts. A lock that stays held yields ErrLockAcquisitionFailed.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		acquired, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return domainErrors.NewDomainError("lock_unavailable",
		fmt.Sprintf("%s is held by another worker", l.key), domainErrors.ErrLockAcquisitionFailed)
}

// Extend resets the lock TTL.
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.acquired {
		return domainErrors.ErrLockNotHeld
	}

	result, err := extendLockScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}

	if val, ok := result.(int64); !ok || val == 0 {
		return fmt.Errorf("%w: %s expired", domainErrors.ErrLockNotHeld, l.key)
	}
	return nil
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.acquired = false
	if val, ok := result.(int64); !ok || val == 0 {
		return fmt.Errorf("%w: %s expired before release", domainErrors.ErrLockNotHeld, l.key)
	}
	return nil
}

// IsAcquired returns whether the lock is acquired
func (l *DistributedLock) IsAcquired() bool {
	return l.acquired
}

// LockerConfig tunes Locker.
type LockerConfig struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Locker hands out DistributedLocks for the orchestration layer.
type Locker struct {
	client  *redis.Client
	cfg     LockerConfig
	metrics *observability.Metrics
}

// NewLocker creates a Locker. metrics may be nil.
func NewLocker(client *redis.Client, cfg LockerConfig, metrics *observability.Metrics) *Locker {
	return &Locker{client: client, cfg: cfg, metrics: metrics}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock := NewDistributedLock(l.client, key, l.cfg.TTL)
	err := lock.AcquireWithRetry(ctx, l.cfg.Retries, l.cfg.RetryDelay)
	l.observe(err)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

func (l *Locker) observe(err error) {
	if l.metrics == nil {
		return
	}
	result := "acquired"
	if err != nil {
		result = "contended"
		if !errors.Is(err, domainErrors.ErrLockAcquisitionFailed) {
			result = "error"
		}
	}
	l.metrics.LockAcquisitions.WithLabelValues(result).Inc()
}
