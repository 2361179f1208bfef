package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_Profile(t *testing.T) {
	last := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	u := &User{
		ID:                 3,
		Username:           "dock-lead",
		Email:              "lead@example.com",
		PasswordCredential: "aa$bb",
		Role:               RoleAdmin,
		LastLoginAt:        &last,
		FailedAttempts:     2,
	}

	p := u.Profile()
	assert.Equal(t, &Profile{ID: 3, Username: "dock-lead", Email: "lead@example.com", Role: RoleAdmin, LastLoginAt: &last}, p)
	assert.True(t, u.IsAdmin())
	assert.False(t, (&User{Role: RoleOperator}).IsAdmin())
}
