// Package devicelogs provides PostgreSQL-backed storage for operational
// messages posted by warehouse devices.
package devicelogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

// PostgresRepository implements device log storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts l and fills in ID and Timestamp.
func (r *PostgresRepository) Create(ctx context.Context, l *models.DeviceLog) error {
	query := `
		INSERT INTO device_logs (message, device_ip, level)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, l.Message, l.DeviceIP, l.Level).Scan(&l.ID, &l.Timestamp)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns up to limit logs ordered newest first, optionally filtered by level.
func (r *PostgresRepository) List(ctx context.Context, limit int, level string) ([]*models.DeviceLog, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if level != "" {
		query := ` SELECT id, created_at, message, device_ip, level FROM device_logs
			WHERE level=$1 ORDER BY created_at DESC, id DESC LIMIT $2
			`
		rows, err = r.db.QueryContext(ctx, query, level, limit)
	} else {
		query := ` SELECT id, created_at, message, device_ip, level FROM device_logs
			ORDER BY created_at DESC, id DESC LIMIT $1
			`
		rows, err = r.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select device logs: %w", err)
	}
	defer rows.Close()

	var result []*models.DeviceLog
	for rows.Next() {
		var item models.DeviceLog
		if err := rows.Scan(&item.ID, &item.Timestamp, &item.Message, &item.DeviceIP, &item.Level); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats returns the total count, the count per level and the newest entry.
func (r *PostgresRepository) Stats(ctx context.Context) (*models.DeviceLogStats, error) {
	stats := &models.DeviceLogStats{ByLevel: map[string]int64{}}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_logs`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM device_logs GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			level string
			n     int64
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		stats.ByLevel[level] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	last := &models.DeviceLog{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, created_at, message, device_ip, level FROM device_logs ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&last.ID, &last.Timestamp, &last.Message, &last.DeviceIP, &last.Level)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("db error: %w", err)
	default:
		stats.Last = last
	}

	return stats, nil
}

// Clear removes all device logs.
func (r *PostgresRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM device_logs`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
