package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"filetrack/internal/lock"
	"filetrack/internal/models"
	"filetrack/internal/notifications"
	"filetrack/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails GetByID for one file and delegates everything else.
type flakyStore struct {
	repository.Store
	failID uint
}

func (s flakyStore) Files() repository.FileRepository {
	return flakyFiles{FileRepository: s.Store.Files(), failID: s.failID}
}

type flakyFiles struct {
	repository.FileRepository
	failID uint
}

func (r flakyFiles) GetByID(ctx context.Context, id uint) (*models.File, error) {
	if id == r.failID {
		return nil, models.NewTransientStoreError(errors.New("connection reset"))
	}
	return r.FileRepository.GetByID(ctx, id)
}

func TestSweep_FlagsOverdueFilesAndRefreshesOthers(t *testing.T) {
	f := newFixture(t)
	urgent := f.createFile("REV/M/001", models.CategoryUrgent)
	routine := f.createFile("REV/M/002", models.CategoryRoutine)
	held := f.createFile("REV/M/003", models.CategoryImmediate)
	_, err := f.routing.Hold(f.ctx, held.ID, actorOf(f.clerk), HoldCmd{Precondition: f.seen(held.ID), Reason: "awaiting fee"})
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	result := f.monitor.SweepOnce(f.ctx)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.RedListed)
	assert.Equal(t, 2, result.Refreshed)
	assert.Empty(t, result.Failed)

	flagged := f.reload(urgent.ID)
	assert.True(t, flagged.IsRedListed)
	assert.Equal(t, int64(-3600), *flagged.TimeRemaining)
	assert.Equal(t, urgent.Version+1, flagged.Version)

	refreshed := f.reload(routine.ID)
	assert.False(t, refreshed.IsRedListed)
	assert.Equal(t, int64(72*3600-25*3600), *refreshed.TimeRemaining)
	assert.Equal(t, 65, *refreshed.TimerPercentage)
	assert.Equal(t, routine.Version, refreshed.Version)

	frozen := f.reload(held.ID)
	assert.False(t, frozen.IsRedListed)
	assert.Equal(t, int64(4*3600), *frozen.TimeRemaining)

	// The monitor writes no history.
	assert.Len(t, f.history(urgent.ID), 1)

	f.flush()
	assert.Equal(t, 1, f.sink.to(f.clerk.ID, notifications.KindRedListed))
	assert.Equal(t, 1, f.sink.to(f.admin.ID, notifications.KindRedListed))
	assert.Equal(t, 0, f.sink.to(f.super.ID, notifications.KindRedListed))
}

func TestSweep_NeverClearsOrReflags(t *testing.T) {
	f := newFixture(t)
	file := f.createFile("REV/M/010", models.CategoryImmediate)

	f.clock.Advance(5 * time.Hour)
	first := f.monitor.SweepOnce(f.ctx)
	require.Equal(t, 1, first.RedListed)
	flagged := f.reload(file.ID)

	f.clock.Advance(time.Hour)
	second := f.monitor.SweepOnce(f.ctx)
	assert.Equal(t, 0, second.RedListed)
	assert.Equal(t, 1, second.Refreshed)

	after := f.reload(file.ID)
	assert.True(t, after.IsRedListed)
	assert.True(t, flagged.RedListedAt.Equal(*after.RedListedAt))
	assert.Equal(t, flagged.Version, after.Version)
	assert.Equal(t, int64(-2*3600), *after.TimeRemaining)
}

func TestSweep_SkipsClosedFiles(t *testing.T) {
	f := newFixture(t)
	file := f.createFile("REV/M/020", models.CategoryImmediate)
	f.forwardTo(file.ID, f.clerk, f.head)
	_, err := f.routing.Approve(f.ctx, file.ID, actorOf(f.head), ApproveCmd{Precondition: f.seen(file.ID)})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour)
	result := f.monitor.SweepOnce(f.ctx)
	assert.Equal(t, 0, result.Scanned)
	assert.False(t, f.reload(file.ID).IsRedListed)
}

func TestSweep_IsolatesFileFailures(t *testing.T) {
	f := newFixture(t)
	broken := f.createFile("REV/M/030", models.CategoryImmediate)
	healthy := f.createFile("REV/M/031", models.CategoryImmediate)

	monitor := NewRedListMonitor(
		flakyStore{Store: f.store, failID: broken.ID}, lock.NewLocal(), f.clock, f.emitter,
		MonitorOptions{Workers: 2, FileTimeout: time.Second},
	)
	f.clock.Advance(5 * time.Hour)
	result := monitor.SweepOnce(f.ctx)

	assert.Equal(t, 2, result.Scanned)
	require.Len(t, result.Failed, 1)
	assert.True(t, models.IsTransient(result.Failed[broken.ID]))
	assert.Equal(t, 1, result.RedListed)
	assert.True(t, f.reload(healthy.ID).IsRedListed)
	assert.False(t, f.reload(broken.ID).IsRedListed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.createFile("REV/M/040", models.CategoryImmediate)
	f.clock.Advance(5 * time.Hour)

	monitor := NewRedListMonitor(f.store, lock.NewLocal(), f.clock, f.emitter, MonitorOptions{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	require.Eventually(t, func() bool {
		files, err := f.store.Files().ListActiveIDs(f.ctx)
		if err != nil || len(files) == 0 {
			return false
		}
		return f.reload(files[0]).IsRedListed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
