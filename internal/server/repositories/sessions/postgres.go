package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {

	query :=
		`INSERT INTO sessions (id, user_id, token_digest, source_address, created_at, expires_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		 `

	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.TokenDigest, s.SourceAddress, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: session token", common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}

	s.Active = true
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, digest string) (bool, error) {

	query :=
		`UPDATE sessions SET is_active = FALSE
		 WHERE token_digest = $1 AND is_active
		 `

	res, err := r.db.ExecContext(ctx, query, digest)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) IsActive(ctx context.Context, digest string, now time.Time) (bool, error) {

	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM sessions
		   WHERE token_digest = $1 AND is_active AND expires_at > $2
		 )
		 `

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, digest, now).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {

	query :=
		`UPDATE sessions SET is_active = FALSE
		 WHERE is_active AND expires_at <= $1
		 `

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
