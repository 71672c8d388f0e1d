package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/umsys/user-management/internal/notify"
	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

type NotificationStore interface {
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	Delete(ctx context.Context, id string) error
}

type DeviceRegistry interface {
	Register(ctx context.Context, device *models.UserDevice) error
}

type NotificationCommandService struct {
	notifications NotificationStore
	users         UserLookup
	devices       DeviceRegistry
	notifier      notify.Notifier
	logger        *slog.Logger
}

func NewNotificationCommandService(
	notifications NotificationStore,
	users UserLookup,
	devices DeviceRegistry,
	notifier notify.Notifier,
	logger *slog.Logger,
) *NotificationCommandService {
	return &NotificationCommandService{
		notifications: notifications,
		users:         users,
		devices:       devices,
		notifier:      notifier,
		logger:        logger.With("component", "notification-commands"),
	}
}

// CreateNotification files and sends an ad-hoc notification. A delivery
// failure is logged; the stored record is still returned.
func (s *NotificationCommandService) CreateNotification(ctx context.Context, cmd cqrs.CreateNotificationCommand) (*models.Notification, error) {
	if !cmd.Priority.Valid() {
		return nil, errs.Validation("priority must be LOW, MEDIUM or HIGH")
	}
	user, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	n, err := s.notifier.Notify(ctx, *user, cmd.Title, cmd.Message, cmd.Priority)
	if err != nil {
		if n != nil && errors.Is(err, errs.ErrTransport) {
			s.logger.Warn("notification stored but not delivered", "notificationId", n.ID, "error", err)
			return n, nil
		}
		return nil, err
	}
	return n, nil
}

// MarkNotificationRead is restricted to the notification's owner.
func (s *NotificationCommandService) MarkNotificationRead(ctx context.Context, cmd cqrs.MarkNotificationReadCommand) (*models.Notification, error) {
	n, err := s.notifications.GetByID(ctx, cmd.NotificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != cmd.Actor.UserID {
		return nil, errs.Forbidden("you can only mark your own notifications as read")
	}
	return s.notifications.MarkRead(ctx, cmd.NotificationID)
}

func (s *NotificationCommandService) DeleteNotification(ctx context.Context, cmd cqrs.DeleteNotificationCommand) error {
	n, err := s.notifications.GetByID(ctx, cmd.NotificationID)
	if err != nil {
		return err
	}
	if !cmd.Actor.CanAccess(n.UserID) {
		return errs.Forbidden("you can only delete your own notifications")
	}
	return s.notifications.Delete(ctx, cmd.NotificationID)
}

func (s *NotificationCommandService) Broadcast(ctx context.Context, cmd cqrs.BroadcastCommand) (*models.BroadcastResult, error) {
	if !cmd.Priority.Valid() {
		return nil, errs.Validation("priority must be LOW, MEDIUM or HIGH")
	}
	return s.notifier.Broadcast(ctx, cmd.Title, cmd.Message, cmd.Priority)
}

func (s *NotificationCommandService) RegisterDevice(ctx context.Context, cmd cqrs.RegisterDeviceCommand) (*models.UserDevice, error) {
	if _, err := s.users.GetByID(ctx, cmd.UserID); err != nil {
		return nil, err
	}
	device := &models.UserDevice{
		UserID:    cmd.UserID,
		Token:     cmd.Token,
		Platform:  cmd.Platform,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.devices.Register(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}
