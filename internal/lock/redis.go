package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"filetrack/internal/models"
	"filetrack/internal/observability"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis is a distributed per-key lock built on bsm/redislock.
// A holder that dies releases the key when ttl expires.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis-backed locker. ttl bounds how long a crashed holder can block others.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: redislock.New(rdb), ttl: ttl, retry: 50 * time.Millisecond}
}

// Acquire retries until the key is free or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	l, err := r.client.Obtain(ctx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.retry),
	})
	// A caller that gave up is not retried.
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, models.NewConflictError(fmt.Sprintf("could not obtain %s", key))
	}
	if err != nil {
		return nil, models.NewTransientStoreError(fmt.Errorf("obtain %s: %w", key, err))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release must still reach Redis.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				observability.GlobalLogger.Warn("failed to release lock",
					slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}, nil
}
