// Package notify persists notification records and delivers them over the
// configured channels.
package notify

import (
	"context"
	"fmt"

	"github.com/umsys/user-management/shared/models"
)

// Audience says who a delivery is addressed to.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceAdmin Audience = "admin"
)

// Envelope is everything a transport needs to deliver one notification.
// It is also the payload of an outbox delivery job.
type Envelope struct {
	NotificationID string          `json:"notificationId"`
	UserID         string          `json:"userId"`
	Email          string          `json:"email"`
	Audience       Audience        `json:"audience"`
	Subject        string          `json:"subject"`
	Text           string          `json:"text"`
	HTML           string          `json:"html,omitempty"`
	Priority       models.Priority `json:"priority"`
}

// Transport delivers an envelope over one channel.
type Transport interface {
	Channel() models.Channel
	Send(ctx context.Context, env Envelope) error
}

// Registry maps channel names to their transports.
type Registry map[models.Channel]Transport

func (r Registry) Register(t Transport) {
	r[t.Channel()] = t
}

// Select returns the transports for channels in the given order. Asking for a
// channel that was never registered is a configuration error.
func (r Registry) Select(channels []models.Channel) ([]Transport, error) {
	selected := make([]Transport, 0, len(channels))
	for _, ch := range channels {
		t, ok := r[ch]
		if !ok {
			return nil, fmt.Errorf("notification channel %q is not available", ch)
		}
		selected = append(selected, t)
	}
	return selected, nil
}
