package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishUser(t *testing.T) {
	// Notifier with nil Redis should return nil error (fail-open/noop)
	n := NewNotifier(nil)
	err := n.PublishUser(context.Background(), 1, "test payload")
	assert.NoError(t, err)
	assert.NoError(t, n.Deliver(context.Background(), 1, Event{Kind: KindAssigned}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestNotifier_DeliverPublishesJSON(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct{ channel, payload string }
	got := make(chan received, 1)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- received{channel, payload}
	}))

	ev := Event{Kind: KindRedListed, FileID: 42, FileNumber: "F-42", At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, n.Deliver(context.Background(), 7, ev))

	select {
	case msg := <-got:
		assert.Equal(t, "notifications:user:7", msg.channel)
		var decoded Event
		require.NoError(t, json.Unmarshal([]byte(msg.payload), &decoded))
		assert.Equal(t, KindRedListed, decoded.Kind)
		assert.Equal(t, uint(42), decoded.FileID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not published")
	}
}
