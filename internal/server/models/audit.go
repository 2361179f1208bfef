package models

import "time"

type AuditAction string

const (
	AuditUserCreated  AuditAction = "USER_CREATED"
	AuditLoginSuccess AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed  AuditAction = "LOGIN_FAILED"
	AuditLoginBlocked AuditAction = "LOGIN_BLOCKED"
	AuditLogout       AuditAction = "LOGOUT"
)

// AuditEntry is an append-only row of audit_log. UserID is nil when the
// actor could not be identified.
type AuditEntry struct {
	ID            int64
	UserID        *int64
	Action        AuditAction
	Resource      *string
	Detail        *string
	SourceAddress string
	CreatedAt     time.Time
}
