package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"filetrack/internal/clock"
	"filetrack/internal/lock"
	"filetrack/internal/notifications"
	"filetrack/internal/observability"
	"filetrack/internal/repository"
	"filetrack/internal/sla"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// MonitorOptions tunes the red-list sweep.
type MonitorOptions struct {
	Interval    time.Duration
	Workers     int
	FileTimeout time.Duration
}

// RedListMonitor periodically refreshes cached timers and flags overdue files.
// It never clears a red-list flag; only routing transitions do.
type RedListMonitor struct {
	store   repository.Store
	locker  lock.Locker
	clock   clock.Clock
	emitter *notifications.Emitter
	opts    MonitorOptions
}

// NewRedListMonitor returns a new RedListMonitor.
func NewRedListMonitor(
	store repository.Store, locker lock.Locker, clk clock.Clock, emitter *notifications.Emitter, opts MonitorOptions,
) *RedListMonitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = 10 * time.Second
	}
	return &RedListMonitor{store: store, locker: locker, clock: clk, emitter: emitter, opts: opts}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	RunID     string
	Scanned   int
	Refreshed int
	RedListed int
	Skipped   int
	Failed    map[uint]error
}

// Run sweeps on every tick until ctx is cancelled.
func (m *RedListMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce evaluates every active file once. Per-file failures are logged and counted;
// they never stop the sweep.
func (m *RedListMonitor) SweepOnce(ctx context.Context) SweepResult {
	start := time.Now()
	result := SweepResult{RunID: uuid.NewString(), Failed: make(map[uint]error)}
	ctx = observability.WithCorrelationID(ctx, result.RunID)
	span, ctx := observability.NewSpan(ctx, "redlist.sweep")
	defer span.End()
	defer func() {
		observability.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	fields := map[string]interface{}{"run_id": result.RunID}
	observability.LogAsyncOperationStart(ctx, "redlist_sweep", fields)

	ids, err := m.store.Files().ListActiveIDs(ctx)
	if err != nil {
		span.SetError(err)
		observability.LogAsyncOperationError(ctx, "redlist_sweep", err, fields)
		return result
	}
	result.Scanned = len(ids)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(m.opts.Workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := m.processFile(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed[id] = err
				observability.SweepFileErrors.Inc()
				observability.GlobalLogger.WarnContext(ctx, "sweep failed for file",
					slog.Uint64("file_id", uint64(id)),
					slog.String("run_id", result.RunID),
					slog.String("error", err.Error()),
				)
			case outcome == sweepRedListed:
				result.RedListed++
				result.Refreshed++
			case outcome == sweepRefreshed:
				result.Refreshed++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	span.AddAttributes(
		attribute.Int("sweep.scanned", result.Scanned),
		attribute.Int("sweep.red_listed", result.RedListed),
		attribute.Int("sweep.failed", len(result.Failed)),
	)
	fields["scanned"] = result.Scanned
	fields["red_listed"] = result.RedListed
	fields["failed"] = len(result.Failed)
	observability.LogAsyncOperationEnd(ctx, "redlist_sweep", fields)
	return result
}

type sweepOutcome int

const (
	sweepSkipped sweepOutcome = iota
	sweepRefreshed
	sweepRedListed
)

// processFile re-reads the file under its lock and writes back the timer cache,
// flipping the red-list flag when the allotment is exhausted.
func (m *RedListMonitor) processFile(ctx context.Context, fileID uint) (sweepOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.FileTimeout)
	defer cancel()

	release, err := m.locker.Acquire(ctx, lock.FileKey(fileID))
	if err != nil {
		return sweepSkipped, err
	}
	defer release()

	file, err := m.store.Files().GetByID(ctx, fileID)
	if err != nil {
		return sweepSkipped, err
	}
	if file.Status.Terminal() || file.IsOnHold || !file.HasTimer() {
		return sweepSkipped, nil
	}

	now := m.clock.Now()
	timer := sla.Compute(file.DeskArrivalTime, file.AllottedTime, now)
	if !timer.Overdue() || file.IsRedListed {
		if err := m.store.Files().UpdateTimerCache(ctx, file.ID, file.Version, timer.RemainingSeconds, timer.Percentage); err != nil {
			return sweepSkipped, err
		}
		return sweepRefreshed, nil
	}

	admins, err := m.store.Directory().DepartmentAdmins(ctx, file.DepartmentID)
	if err != nil {
		return sweepSkipped, err
	}

	version := file.Version
	file.TimeRemaining = timer.RemainingSeconds
	file.TimerPercentage = timer.Percentage
	file.IsRedListed = true
	file.RedListedAt = &now
	if err := m.store.Files().Save(ctx, file, version); err != nil {
		return sweepSkipped, err
	}
	observability.RedListedTotal.Inc()

	recipients := []uint{file.AssignedToID}
	for _, a := range admins {
		recipients = append(recipients, a.ID)
	}
	m.emitter.Emit(notifications.Event{
		Kind:       notifications.KindRedListed,
		FileID:     file.ID,
		FileNumber: file.FileNumber,
		Message:    fmt.Sprintf("File %s is overdue and has been red-listed", file.FileNumber),
		At:         now,
		Recipients: recipients,
	})
	return sweepRedListed, nil
}
