package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"filetrack/internal/observability"
)

type delivery struct {
	userID uint
	event  Event
}

// Emitter queues events and hands them to a Sink from a background worker.
// Emit never blocks; when the queue is full the delivery is dropped and counted.
type Emitter struct {
	sink    Sink
	timeout time.Duration
	queue   chan delivery

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewEmitter creates an emitter with a bounded queue and starts its worker.
func NewEmitter(sink Sink, queueSize int, timeout time.Duration) *Emitter {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	e := &Emitter{
		sink:    sink,
		timeout: timeout,
		queue:   make(chan delivery, queueSize),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Emit enqueues ev once per distinct non-zero recipient.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[uint]struct{}, len(ev.Recipients))
	for _, userID := range ev.Recipients {
		if userID == 0 {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		if e.closed {
			observability.NotificationsDropped.WithLabelValues("closed").Inc()
			continue
		}
		select {
		case e.queue <- delivery{userID: userID, event: ev}:
		default:
			observability.NotificationsDropped.WithLabelValues("queue_full").Inc()
			observability.GlobalLogger.Warn("notification queue full; dropping",
				slog.String("kind", string(ev.Kind)),
				slog.Uint64("file_id", uint64(ev.FileID)),
				slog.Uint64("user_id", uint64(userID)),
			)
		}
	}
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for d := range e.queue {
		e.deliver(d)
	}
}

func (e *Emitter) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.sink.Deliver(ctx, d.userID, d.event); err != nil {
		observability.NotificationsDropped.WithLabelValues("sink_error").Inc()
		observability.GlobalLogger.Warn("notification delivery failed",
			slog.String("kind", string(d.event.Kind)),
			slog.Uint64("file_id", uint64(d.event.FileID)),
			slog.Uint64("user_id", uint64(d.userID)),
			slog.String("error", err.Error()),
		)
	}
}

// Close stops accepting events and waits for queued deliveries to finish or ctx to expire.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
