package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"

	AddressCreated        = "address.created"
	AddressUpdated        = "address.updated"
	AddressDeleted        = "address.deleted"
	AddressPrimaryChanged = "address.primary_changed"

	PasswordChangeRequested = "password_change.requested"
	PasswordChangeResolved  = "password_change.resolved"

	NotificationPublished         = "notification.published"
	NotificationDeliveryRequested = "notification.delivery_requested"
)

// Stream names
const (
	UserEventsStream           = "user.events"
	AddressEventsStream        = "address.events"
	PasswordChangeEventsStream = "password_change.events"
	NotificationEventsStream   = "notification.events"
	NotificationDeliveryStream = "notification.delivery"
	NotificationDeadStream     = "notification.delivery.dead"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DecodeData converts the loosely typed payload of a consumed event into T.
func DecodeData[T any](event Event) (T, error) {
	var out T
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return out, fmt.Errorf("failed to re-encode %s payload: %w", event.Type, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal %s payload: %w", event.Type, err)
	}
	return out, nil
}

// User events
type UserCreatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type UserUpdatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type UserDeletedEvent struct {
	UserID string `json:"userId"`
}

// Address events
type AddressEvent struct {
	AddressID string `json:"addressId"`
	UserID    string `json:"userId"`
	IsPrimary bool   `json:"isPrimary"`
}

// Password change events
type PasswordChangeRequestedEvent struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
}

type PasswordChangeResolvedEvent struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	AdminID   string `json:"adminId"`
	Status    string `json:"status"`
}
