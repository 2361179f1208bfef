package models

import "time"

// Session records one issued bearer token. Only the SHA-256 digest of the
// token is kept.
type Session struct {
	ID            string
	UserID        int64
	TokenDigest   string
	SourceAddress string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Active        bool
}
