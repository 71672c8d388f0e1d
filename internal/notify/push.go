package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/umsys/user-management/shared/models"
)

// DeviceStore looks up and prunes push registration tokens.
type DeviceStore interface {
	ListByUserID(ctx context.Context, userID string) ([]models.UserDevice, error)
	DeleteToken(ctx context.Context, token string) error
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushTransport sends one FCM message per registered device of the user.
type PushTransport struct {
	client  messageSender
	devices DeviceStore
	logger  *slog.Logger
}

func NewPushTransport(ctx context.Context, credentialsFile string, devices DeviceStore, logger *slog.Logger) (*PushTransport, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return newPushTransport(client, devices, logger), nil
}

func newPushTransport(client messageSender, devices DeviceStore, logger *slog.Logger) *PushTransport {
	return &PushTransport{
		client:  client,
		devices: devices,
		logger:  logger.With("channel", models.ChannelPush),
	}
}

func (t *PushTransport) Channel() models.Channel {
	return models.ChannelPush
}

// Send fails only when every device failed. Tokens FCM reports as
// unregistered are removed.
func (t *PushTransport) Send(ctx context.Context, env Envelope) error {
	if env.Audience == AudienceAdmin {
		return nil
	}
	devices, err := t.devices.ListByUserID(ctx, env.UserID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		t.logger.Debug("no registered devices", "userId", env.UserID)
		return nil
	}

	var failures []error
	for _, device := range devices {
		_, err := t.client.Send(ctx, &messaging.Message{
			Token: device.Token,
			Notification: &messaging.Notification{
				Title: env.Subject,
				Body:  env.Text,
			},
			Data: map[string]string{
				"notificationId": env.NotificationID,
				"priority":       string(env.Priority),
			},
			Android: &messaging.AndroidConfig{Priority: androidPriority(env.Priority)},
		})
		if err == nil {
			continue
		}
		if messaging.IsUnregistered(err) {
			t.logger.Info("removing unregistered device token", "userId", env.UserID)
			if derr := t.devices.DeleteToken(ctx, device.Token); derr != nil {
				t.logger.Warn("failed to remove device token", "userId", env.UserID, "error", derr)
			}
			continue
		}
		failures = append(failures, err)
	}

	switch {
	case len(failures) == 0:
		return nil
	case len(failures) == len(devices):
		return errors.Join(failures...)
	default:
		t.logger.Warn("push delivery partially failed",
			"userId", env.UserID, "failed", len(failures), "devices", len(devices))
		return nil
	}
}

func androidPriority(p models.Priority) string {
	if p == models.PriorityHigh {
		return "high"
	}
	return "normal"
}
