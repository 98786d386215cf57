package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"filetrack/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), FileKey(1))
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.keys)
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	release1, err := l.Acquire(context.Background(), FileKey(1))
	require.NoError(t, err)
	defer release1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	release2, err := l.Acquire(ctx, FileKey(2))
	require.NoError(t, err)
	release2()
}

func TestLocal_ContextTimeoutIsConflict(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), FileKey(7))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, FileKey(7))
	assert.True(t, models.IsConflict(err))

	release()
	release()

	again, err := l.Acquire(context.Background(), FileKey(7))
	require.NoError(t, err)
	again()
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedis(rdb, 5*time.Second)
	release, err := l.Acquire(context.Background(), FileKey(3))
	require.NoError(t, err)
	assert.True(t, mr.Exists(FileKey(3)))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, FileKey(3))
	assert.True(t, models.IsConflict(err))

	release()
	assert.False(t, mr.Exists(FileKey(3)))

	release2, err := l.Acquire(context.Background(), FileKey(3))
	require.NoError(t, err)
	release2()
}

func TestRedis_CancelledCallerIsNotTransient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedis(rdb, 5*time.Second)
	release, err := l.Acquire(context.Background(), FileKey(4))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, FileKey(4))
	assert.True(t, models.IsConflict(err), "unexpected error: %v", err)
	assert.False(t, models.IsTransient(err))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:file:9", FileKey(9))
	assert.Equal(t, "lock:deskscope:2", DeskScopeKey(2))
	assert.Equal(t, "lock:desk:5", DeskKey(5))
}
