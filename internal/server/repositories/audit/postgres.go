package audit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.AuditEntry) error {

	query :=
		`INSERT INTO audit_log (user_id, action, resource, detail, source_address)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		e.UserID, string(e.Action), e.Resource, e.Detail, e.SourceAddress).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
