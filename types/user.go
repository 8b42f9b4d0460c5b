package types

import (
	"strings"
	"time"
)

const (
	// RoleNormal is assigned to every account created through sign-up.
	RoleNormal = "normal"
	// RoleAdmin may delete other users.
	RoleAdmin = "admin"
)

// User represents an account that owns messages.
// It contains identity, role, and profile metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address. It can be used
	// in place of the username to sign in.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level ("normal" or "admin").
	Role string `json:"role" db:"role"`

	// Point is the user's score.
	Point int `json:"point" db:"point"`

	// AvatarURL is the public URL of the uploaded avatar, empty when unset.
	AvatarURL string `json:"avatarUrl" db:"avatar_url"`

	// Description is a free-form profile text.
	Description string `json:"description" db:"description"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// NewUser carries the fields required to create an account.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Point        int
	AvatarURL    string
	Description  string
}

// Validate checks that every required field is present.
func (u NewUser) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return requiredField("username")
	}
	if strings.TrimSpace(u.Email) == "" {
		return requiredField("email")
	}
	if u.PasswordHash == "" {
		return requiredField("password")
	}
	return nil
}
