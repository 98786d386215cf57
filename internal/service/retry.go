package service

import (
	"context"
	"time"

	"filetrack/internal/models"

	"github.com/cenkalti/backoff/v5"
)

// retryInitialInterval is the first backoff step of RetryTransient.
var retryInitialInterval = 200 * time.Millisecond

// RetryTransient runs op up to maxAttempts times with exponential backoff while it fails with a
// transient store error. Any other error is returned immediately. Callers wrap whole commands,
// which are all-or-nothing, so a retry never observes a half-applied transition.
func RetryTransient[T any](ctx context.Context, maxAttempts int, op func() (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !models.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(maxAttempts)))
}
