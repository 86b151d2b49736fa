// Package model defines domain entities for the application.
package model

import "time"

// Column limits enforced by the users table.
const (
	MaxUsernameLength = 255
	MaxEmailLength    = 255
)

// User is a persisted person record.
// Username and Email are unique across all users; ID is assigned by the
// store and never changes.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser returns an unsaved active user.
func NewUser(username, email string) *User {
	return &User{
		Username: username,
		Email:    email,
		Active:   true,
	}
}
