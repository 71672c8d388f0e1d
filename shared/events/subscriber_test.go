package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
)

// fakeStreams records the stream commands the subscriber issues after a
// message has been handled. Unused commands panic via the nil Cmdable.
type fakeStreams struct {
	redis.Cmdable
	retryCount int64
	acked      []string
	added      []*redis.XAddArgs
	addErr     error
}

func (f *fakeStreams) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.acked = append(f.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (f *fakeStreams) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, a)
	cmd := redis.NewStringCmd(ctx)
	if f.addErr != nil {
		cmd.SetErr(f.addErr)
		return cmd
	}
	cmd.SetVal("1-0")
	return cmd
}

func (f *fakeStreams) XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal([]redis.XPendingExt{{ID: a.Start, Consumer: "worker-1", RetryCount: f.retryCount}})
	return cmd
}

func newTestSubscriber(client redis.Cmdable, handler Handler) *Subscriber {
	return NewSubscriber(client, SubscriberConfig{
		Group:            "notification-delivery-group",
		Consumer:         "worker-1",
		Stream:           NotificationDeliveryStream,
		Handler:          handler,
		MaxDeliveries:    3,
		DeadLetterStream: NotificationDeadStream,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func deliveryMessage(id string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]any{"event": `{"type":"notification.delivery","data":{}}`}}
}

func TestHandleBatch(t *testing.T) {
	failing := func(context.Context, Event) error { return errors.New("smtp unavailable") }
	succeeding := func(context.Context, Event) error { return nil }

	tests := []struct {
		name       string
		handler    Handler
		message    redis.XMessage
		reclaimed  bool
		retryCount int64
		wantAcked  bool
		wantDead   bool
	}{
		{
			name:      "success is acknowledged",
			handler:   succeeding,
			message:   deliveryMessage("1-0"),
			wantAcked: true,
		},
		{
			name:      "first failure stays pending",
			handler:   failing,
			message:   deliveryMessage("1-0"),
			wantAcked: false,
		},
		{
			name:       "reclaimed failure below the limit stays pending",
			handler:    failing,
			message:    deliveryMessage("1-0"),
			reclaimed:  true,
			retryCount: 2,
			wantAcked:  false,
		},
		{
			name:       "failure at the limit is dead-lettered",
			handler:    failing,
			message:    deliveryMessage("1-0"),
			reclaimed:  true,
			retryCount: 3,
			wantAcked:  true,
			wantDead:   true,
		},
		{
			name:      "malformed message is dead-lettered at once",
			handler:   succeeding,
			message:   redis.XMessage{ID: "2-0", Values: map[string]any{"event": "{not json"}},
			wantAcked: true,
			wantDead:  true,
		},
		{
			name:      "message without event field is dead-lettered",
			handler:   succeeding,
			message:   redis.XMessage{ID: "3-0", Values: map[string]any{"other": "x"}},
			wantAcked: true,
			wantDead:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeStreams{retryCount: tt.retryCount}
			sub := newTestSubscriber(client, tt.handler)

			sub.handleBatch(context.Background(), []redis.XMessage{tt.message}, tt.reclaimed)

			if acked := len(client.acked) == 1; acked != tt.wantAcked {
				t.Errorf("acked = %v, want %v", client.acked, tt.wantAcked)
			}
			if dead := len(client.added) == 1; dead != tt.wantDead {
				t.Fatalf("dead-lettered = %d messages, want %v", len(client.added), tt.wantDead)
			}
			if tt.wantDead {
				entry := client.added[0]
				if entry.Stream != NotificationDeadStream {
					t.Errorf("dead-letter stream = %q", entry.Stream)
				}
				values := entry.Values.(map[string]any)
				if values["sourceId"] != tt.message.ID || values["error"] == "" {
					t.Errorf("unexpected dead-letter entry %+v", values)
				}
			}
		})
	}
}

func TestHandleBatchKeepsMessagePendingWhenDeadLetterFails(t *testing.T) {
	client := &fakeStreams{retryCount: 5, addErr: errors.New("connection reset")}
	sub := newTestSubscriber(client, func(context.Context, Event) error { return errors.New("push rejected") })

	sub.handleBatch(context.Background(), []redis.XMessage{deliveryMessage("4-0")}, true)

	if len(client.acked) != 0 {
		t.Errorf("message acknowledged although dead-letter write failed: %v", client.acked)
	}
}

func TestHandleBatchRetriesForeverWithoutLimit(t *testing.T) {
	client := &fakeStreams{retryCount: 100}
	sub := newTestSubscriber(client, func(context.Context, Event) error { return errors.New("down") })
	sub.maxDeliveries = 0

	sub.handleBatch(context.Background(), []redis.XMessage{deliveryMessage("5-0")}, true)

	if len(client.acked) != 0 || len(client.added) != 0 {
		t.Errorf("expected message to stay pending, acked=%v dead=%d", client.acked, len(client.added))
	}
}
