// Package audit declares the write-only repository for the audit_log table.
package audit

import (
	"context"

	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

type Repository interface {
	// Create appends e and fills in ID and CreatedAt.
	Create(ctx context.Context, e *models.AuditEntry) error
}
