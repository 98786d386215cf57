package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"filetrack/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRetryTransient(t *testing.T) {
	prev := retryInitialInterval
	retryInitialInterval = time.Millisecond
	t.Cleanup(func() { retryInitialInterval = prev })

	transient := models.NewTransientStoreError(errors.New("deadlock detected"))

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantErr   func(error) bool
	}{
		{"succeeds first time", 0, nil, 1, nil},
		{"recovers after transient failures", 2, transient, 3, nil},
		{"gives up after max attempts", 10, transient, 3, models.IsTransient},
		{"does not retry conflicts", 10, models.NewConflictError("stale"), 1, models.IsConflict},
		{"does not retry validation", 10, models.NewValidationError("bad"), 1, models.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := RetryTransient(context.Background(), 3, func() (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failWith
				}
				return 42, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.Equal(t, 42, v)
			} else {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
			}
		})
	}
}
