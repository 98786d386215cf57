package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"runtime/debug"
	"strconv"

	"filetrack/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Sink delivers a single event to a single user.
type Sink interface {
	Deliver(ctx context.Context, userID uint, ev Event) error
}

// Notifier publishes events into per-user Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Deliver implements Sink.
func (n *Notifier) Deliver(ctx context.Context, userID uint, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.PublishUser(ctx, userID, string(payload))
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(
	ctx context.Context, userID uint, payload string,
) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*")
	// Wait for the subscription to be confirmed so no early publish is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// LogSink writes events to the structured log. Used when Redis is not configured.
type LogSink struct{}

// Deliver implements Sink.
func (LogSink) Deliver(ctx context.Context, userID uint, ev Event) error {
	observability.GlobalLogger.InfoContext(ctx, "notification",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("kind", string(ev.Kind)),
		slog.Uint64("file_id", uint64(ev.FileID)),
		slog.String("message", ev.Message),
	)
	return nil
}
