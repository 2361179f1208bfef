// Package models defines server-side data models persisted in the database.
package models

import "time"

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// User is a row of the users table. PasswordCredential holds the
// salt$hash string, never the password itself.
type User struct {
	ID                 int64
	Username           string
	Email              string
	PasswordCredential string
	Role               string
	Active             bool
	CreatedAt          time.Time
	LastLoginAt        *time.Time

	// FailedAttempts and LockedUntil are owned by the lockout policy.
	FailedAttempts int
	LockedUntil    *time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile is the public view of a user returned to callers.
type Profile struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
}

func (u *User) Profile() *Profile {
	return &Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
	}
}
