package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
)

const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// DeviceLogService stores and queries operational device messages. All
// methods expect an already authenticated caller.
type DeviceLogService struct {
	store dbx.Transactor
	repos repomanager.RepositoryManager
	log   logging.Logger
}

func NewDeviceLogService(store dbx.Transactor, repos repomanager.RepositoryManager, opts ...Option) *DeviceLogService {
	o := buildOptions(opts)
	return &DeviceLogService{
		store: store,
		repos: repos,
		log:   o.logger.With("module", "devicelogs"),
	}
}

func (s *DeviceLogService) Append(ctx context.Context, message, level, deviceIP string) (*models.DeviceLog, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", common.ErrValidation)
	}
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" {
		level = models.DefaultLogLevel
	}

	l := &models.DeviceLog{Message: message, Level: level, DeviceIP: deviceIP}
	if err := s.repos.DeviceLogs(s.store.Conn()).Create(ctx, l); err != nil {
		return nil, storeErr(err)
	}
	return l, nil
}

// List returns the newest logs. A non-positive limit means DefaultLogLimit
// and anything above MaxLogLimit is capped.
func (s *DeviceLogService) List(ctx context.Context, limit int, level string) ([]*models.DeviceLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultLogLimit
	case limit > MaxLogLimit:
		limit = MaxLogLimit
	}

	logs, err := s.repos.DeviceLogs(s.store.Conn()).List(ctx, limit, strings.ToUpper(strings.TrimSpace(level)))
	if err != nil {
		return nil, storeErr(err)
	}
	if logs == nil {
		logs = []*models.DeviceLog{}
	}
	return logs, nil
}

func (s *DeviceLogService) Status(ctx context.Context) (*models.DeviceLogStats, error) {
	stats, err := s.repos.DeviceLogs(s.store.Conn()).Stats(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return stats, nil
}

// Clear deletes every device log. Only active admins may do this.
func (s *DeviceLogService) Clear(ctx context.Context, caller Identity) (int64, error) {
	user, err := s.repos.Users(s.store.Conn()).GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, fmt.Errorf("%w: caller no longer exists", common.ErrorUnauthorized)
		}
		return 0, storeErr(err)
	}
	if !user.Active || !user.IsAdmin() {
		return 0, fmt.Errorf("%w: admin role required", common.ErrForbidden)
	}

	n, err := s.repos.DeviceLogs(s.store.Conn()).Clear(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	s.log.Info(ctx, "device logs cleared", "count", n, "by", user.ID)
	return n, nil
}
