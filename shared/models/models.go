package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdTimestamp"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

// DisplayName is used as the greeting in outbound notices.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

type AddressType string

const (
	AddressHome     AddressType = "HOME"
	AddressWork     AddressType = "WORK"
	AddressBilling  AddressType = "BILLING"
	AddressShipping AddressType = "SHIPPING"
	AddressOther    AddressType = "OTHER"
)

type Address struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	StreetAddress string      `json:"streetAddress"`
	City          string      `json:"city"`
	State         string      `json:"state,omitempty"`
	PostalCode    string      `json:"postalCode"`
	Country       string      `json:"country"`
	AddressType   AddressType `json:"addressType,omitempty"`
	IsPrimary     bool        `json:"isPrimary"`
	CreatedAt     time.Time   `json:"createdTimestamp"`
	UpdatedAt     time.Time   `json:"updatedTimestamp"`
}

type PasswordChangeStatus string

const (
	PasswordChangePending  PasswordChangeStatus = "PENDING"
	PasswordChangeApproved PasswordChangeStatus = "APPROVED"
	PasswordChangeRejected PasswordChangeStatus = "REJECTED"
)

// PasswordChangeRequest holds a requested credential change until an admin
// resolves it. NewPasswordHash is a bcrypt hash and never leaves the service.
type PasswordChangeRequest struct {
	ID              string               `json:"id"`
	UserID          string               `json:"userId"`
	NewPasswordHash string               `json:"-"`
	Status          PasswordChangeStatus `json:"status"`
	AdminID         string               `json:"adminId,omitempty"`
	CreatedAt       time.Time            `json:"createdTimestamp"`
	UpdatedAt       time.Time            `json:"updatedTimestamp"`
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdTimestamp"`
}

// Channel names a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "inapp"
)

// UserDevice is a push registration token owned by a user.
type UserDevice struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"createdTimestamp"`
}
