package cqrs

import "github.com/umsys/user-management/shared/models"

// ---------- User queries ----------

// GetUserQuery fetches a single user by ID, subject to ownership check.
type GetUserQuery struct {
	UserID string
	Actor  Actor
}

type GetUserByEmailQuery struct {
	Email string
}

type ListUsersQuery struct{}

// ---------- Address queries ----------

type GetAddressQuery struct {
	AddressID string
	Actor     Actor
}

type ListAddressesQuery struct{}

// ListUserAddressesQuery fetches all addresses belonging to a user.
type ListUserAddressesQuery struct {
	UserID string
	Actor  Actor
}

// ---------- Password change queries ----------

type ListPendingPasswordChangesQuery struct{}

// ---------- Notification queries ----------

type GetNotificationQuery struct {
	NotificationID string
	Actor          Actor
}

type ListNotificationsQuery struct{}

// ListUserNotificationsQuery lists a user's notifications, newest first.
// An empty Priority means all priorities.
type ListUserNotificationsQuery struct {
	UserID   string
	Priority models.Priority
	Actor    Actor
}
