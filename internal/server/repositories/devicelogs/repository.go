package devicelogs

import (
	"context"

	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, l *models.DeviceLog) error
	// List returns at most limit rows, newest first. An empty level means all levels.
	List(ctx context.Context, limit int, level string) ([]*models.DeviceLog, error)
	Stats(ctx context.Context) (*models.DeviceLogStats, error)
	// Clear deletes every row and returns the number removed.
	Clear(ctx context.Context) (int64, error)
}
