// Package models defines the server-side data models shared by services and
// repositories.
package models

import "time"

// User is a dashboard account. PasswordHash holds a bcrypt hash; plaintext
// passwords never reach this type.
type User struct {
	ID           string
	UserName     string
	DisplayName  string
	Email        string
	PasswordHash []byte
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name returns the display name, falling back to the login.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.UserName
}
