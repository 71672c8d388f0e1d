package query

import (
	"context"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

type NotificationReader interface {
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Notification, error)
	ListByUserIDAndPriority(ctx context.Context, userID string, priority models.Priority) ([]models.Notification, error)
	ListAll(ctx context.Context) ([]models.Notification, error)
}

type NotificationQueryService struct {
	notifications NotificationReader
}

func NewNotificationQueryService(notifications NotificationReader) *NotificationQueryService {
	return &NotificationQueryService{notifications: notifications}
}

func (s *NotificationQueryService) GetNotification(ctx context.Context, q cqrs.GetNotificationQuery) (*models.Notification, error) {
	n, err := s.notifications.GetByID(ctx, q.NotificationID)
	if err != nil {
		return nil, err
	}
	if !q.Actor.CanAccess(n.UserID) {
		return nil, errs.Forbidden("you can only view your own notifications")
	}
	return n, nil
}

func (s *NotificationQueryService) ListNotifications(ctx context.Context, _ cqrs.ListNotificationsQuery) ([]models.Notification, error) {
	return s.notifications.ListAll(ctx)
}

// ListUserNotifications lists newest first, optionally narrowed to one priority.
func (s *NotificationQueryService) ListUserNotifications(ctx context.Context, q cqrs.ListUserNotificationsQuery) ([]models.Notification, error) {
	if !q.Actor.CanAccess(q.UserID) {
		return nil, errs.Forbidden("you can only view your own notifications")
	}
	if q.Priority == "" {
		return s.notifications.ListByUserID(ctx, q.UserID)
	}
	if !q.Priority.Valid() {
		return nil, errs.Validation("priority must be LOW, MEDIUM or HIGH")
	}
	return s.notifications.ListByUserIDAndPriority(ctx, q.UserID, q.Priority)
}
