// Package users declares the server-side repository contract for user
// accounts and their lockout state.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in ID and CreatedAt. A duplicate
	// username or email yields common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername and GetByID return common.ErrorNotFound for a missing row.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByIDForUpdate reads the row and locks it until the surrounding
	// transaction ends. Only meaningful on a transactional DBTX.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)

	// UpdateLockState writes the failed-attempt counter and lock expiry.
	UpdateLockState(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error

	// RecordLogin stamps the last successful login.
	RecordLogin(ctx context.Context, id int64, at time.Time) error

	CountByRole(ctx context.Context, role string) (int64, error)

	// LockRole takes a transaction-scoped advisory lock keyed by role, so
	// check-then-insert sequences on that role run one at a time.
	LockRole(ctx context.Context, role string) error
}
