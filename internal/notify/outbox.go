package notify

import (
	"context"
	"log/slog"

	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/models"
)

// Outbox queues delivery jobs on a Redis stream.
type Outbox struct {
	publisher EventPublisher
}

func NewOutbox(publisher EventPublisher) *Outbox {
	return &Outbox{publisher: publisher}
}

func (o *Outbox) Enqueue(ctx context.Context, env Envelope) error {
	return o.publisher.Publish(ctx, events.NotificationDeliveryStream, events.NotificationDeliveryRequested, env)
}

type Deliverer interface {
	DeliverPending(ctx context.Context, env Envelope, sent ChannelLedger) error
}

// ChannelLedger records the channels a notification already went out on, so
// a retried job only resends the channels that failed.
type ChannelLedger interface {
	IsChannelDelivered(ctx context.Context, notificationID string, ch models.Channel) bool
	MarkChannelDelivered(ctx context.Context, notificationID string, ch models.Channel)
}

// DeliveryLedger remembers which notifications the worker already delivered.
type DeliveryLedger interface {
	ChannelLedger
	IsDeliveryProcessed(ctx context.Context, notificationID string) bool
	MarkDeliveryProcessed(ctx context.Context, notificationID string)
}

// OutboxWorker consumes delivery jobs. A failed job is returned as an error so
// the subscriber leaves it un-ACKed for redelivery until its delivery limit.
type OutboxWorker struct {
	deliverer Deliverer
	ledger    DeliveryLedger
	logger    *slog.Logger
}

func NewOutboxWorker(deliverer Deliverer, ledger DeliveryLedger, logger *slog.Logger) *OutboxWorker {
	return &OutboxWorker{deliverer: deliverer, ledger: ledger, logger: logger.With("component", "outbox")}
}

// HandleDeliveryEvent is the Redis stream subscriber handler.
func (w *OutboxWorker) HandleDeliveryEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.NotificationDeliveryRequested {
		return nil
	}
	env, err := events.DecodeData[Envelope](event)
	if err != nil {
		// A malformed job can never succeed; acknowledge it.
		w.logger.Error("dropping malformed delivery job", "error", err)
		return nil
	}
	if w.ledger.IsDeliveryProcessed(ctx, env.NotificationID) {
		w.logger.Debug("delivery already processed", "notificationId", env.NotificationID)
		return nil
	}
	if err := w.deliverer.DeliverPending(ctx, env, w.ledger); err != nil {
		return err
	}
	w.ledger.MarkDeliveryProcessed(ctx, env.NotificationID)
	return nil
}
