package notify

import (
	"context"

	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// InAppEvent is published on the notification stream for the WebSocket
// gateway to fan out to connected clients.
type InAppEvent struct {
	NotificationID string          `json:"notificationId"`
	UserID         string          `json:"userId"`
	Audience       Audience        `json:"audience"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Priority       models.Priority `json:"priority"`
}

type InAppTransport struct {
	publisher EventPublisher
}

func NewInAppTransport(publisher EventPublisher) *InAppTransport {
	return &InAppTransport{publisher: publisher}
}

func (t *InAppTransport) Channel() models.Channel {
	return models.ChannelInApp
}

func (t *InAppTransport) Send(ctx context.Context, env Envelope) error {
	return t.publisher.Publish(ctx, events.NotificationEventsStream, events.NotificationPublished, InAppEvent{
		NotificationID: env.NotificationID,
		UserID:         env.UserID,
		Audience:       env.Audience,
		Title:          env.Subject,
		Message:        env.Text,
		Priority:       env.Priority,
	})
}
