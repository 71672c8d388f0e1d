package models

import "time"

// UserView is the read-optimised projection of a user.
// It never exposes PasswordHash.
type UserView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdTimestamp"`
	UpdatedAt   time.Time `json:"updatedTimestamp"`
}

func NewUserView(u *User) *UserView {
	return &UserView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// PendingPasswordChangeView is a pending request joined with the requesting
// user's contact details. The user fields are empty when the user is gone.
type PendingPasswordChangeView struct {
	ID            string               `json:"id"`
	UserID        string               `json:"userId"`
	Status        PasswordChangeStatus `json:"status"`
	CreatedAt     time.Time            `json:"createdTimestamp"`
	UpdatedAt     time.Time            `json:"updatedTimestamp"`
	UserFirstName string               `json:"userFirstName"`
	UserLastName  string               `json:"userLastName"`
	UserEmail     string               `json:"userEmail"`
}

// BroadcastResult summarises a fan-out to every user.
type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}
