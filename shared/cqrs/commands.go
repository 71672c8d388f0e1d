package cqrs

import "github.com/umsys/user-management/shared/models"

// Actor is the authenticated caller a command or query runs on behalf of.
type Actor struct {
	UserID string
	Admin  bool
}

// CanAccess reports whether the actor may act on a resource owned by ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.Admin || (a.UserID != "" && a.UserID == ownerID)
}

// ---------- User commands ----------

type CreateUserCommand struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	PhoneNumber string
	Role        models.Role
}

// UpdateUserCommand replaces the profile fields; Role is applied only when non-empty.
type UpdateUserCommand struct {
	UserID      string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Role        models.Role
}

type DeleteUserCommand struct {
	UserID string
}

// ---------- Address commands ----------

type CreateAddressCommand struct {
	Actor         Actor
	UserID        string
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Country       string
	AddressType   models.AddressType
	IsPrimary     bool
}

type UpdateAddressCommand struct {
	Actor         Actor
	AddressID     string
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Country       string
	AddressType   models.AddressType
	IsPrimary     bool
}

type DeleteAddressCommand struct {
	Actor     Actor
	AddressID string
}

type SetPrimaryAddressCommand struct {
	Actor     Actor
	AddressID string
}

// ---------- Password change commands ----------

type RequestPasswordChangeCommand struct {
	UserID      string
	OldPassword string
	NewPassword string
}

type ResolvePasswordChangeCommand struct {
	RequestID string
	AdminID   string
	Approve   bool
}

type ResolveUserPasswordChangeCommand struct {
	UserID  string
	AdminID string
	Approve bool
}

// ResetPasswordCommand sets a user's password directly, without a request.
type ResetPasswordCommand struct {
	UserID      string
	AdminID     string
	NewPassword string
}

// ---------- Notification commands ----------

type CreateNotificationCommand struct {
	UserID   string
	Title    string
	Message  string
	Priority models.Priority
}

type MarkNotificationReadCommand struct {
	Actor          Actor
	NotificationID string
}

type DeleteNotificationCommand struct {
	Actor          Actor
	NotificationID string
}

type BroadcastCommand struct {
	Title    string
	Message  string
	Priority models.Priority
}

type RegisterDeviceCommand struct {
	UserID   string
	Token    string
	Platform string
}
