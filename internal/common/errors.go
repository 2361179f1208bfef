// Package common defines shared constants and sentinel errors used across
// the server layers of palletkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// ErrStoreUnavailable wraps any collaborator failure on an auth-deciding path.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")
	ErrRateLimited    = errors.New("rate limit exceeded")

	// Token errors. Both are treated as unauthorized by callers, the split
	// only exists for logs and metrics.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
