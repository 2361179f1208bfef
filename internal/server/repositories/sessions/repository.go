// Package sessions declares the server-side repository contract for the
// sessions table. Tokens are addressed by their SHA-256 digest.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

type Repository interface {
	// Create stores a new active session. A digest collision yields
	// common.ErrConflict.
	Create(ctx context.Context, s *models.Session) error

	// Deactivate marks the session inactive and reports whether a row
	// changed. Unknown or already closed digests are not an error.
	Deactivate(ctx context.Context, digest string) (bool, error)

	// IsActive is true for an active session whose expiry is after now.
	IsActive(ctx context.Context, digest string, now time.Time) (bool, error)

	// DeactivateExpired closes every active session that expired at or
	// before now and returns how many were closed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
