package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/auth"
	"github.com/dmitrijs2005/palletkeeper/internal/server/config"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/palletkeeper/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDatabase connects to Postgres through the pgx stdlib driver and applies
// pending migrations.
func OpenDatabase(ctx context.Context, dsn string, repos repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return db, nil
}

// Stack is the set of services shared by the server and palletctl.
type Stack struct {
	Auth       *services.AuthService
	Sessions   *services.SessionRegistry
	DeviceLogs *services.DeviceLogService
}

// NewStack wires the auth services over db according to cfg.
func NewStack(cfg *config.Config, db *sql.DB, repos repomanager.RepositoryManager, l logging.Logger, m *metrics.Metrics) (*Stack, error) {
	tokens, err := auth.NewTokenService([]byte(cfg.SecretKey), cfg.TokenLifetime)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	hasher := auth.NewPasswordHasher(auth.WithIterations(cfg.PasswordIterations))
	lockout := auth.NewLockoutPolicy(
		auth.WithMaxAttempts(cfg.MaxFailedAttempts),
		auth.WithLockDuration(cfg.LockDuration),
	)

	store := dbx.NewSQLTransactor(db, nil)
	opts := []services.Option{services.WithLogger(l), services.WithMetrics(m)}

	sessions := services.NewSessionRegistry(store, repos, opts...)
	audit := services.NewAuditTrail(store, repos, opts...)

	authSvc, err := services.NewAuthService(store, repos, tokens, hasher, lockout, sessions, audit, opts...)
	if err != nil {
		return nil, err
	}

	return &Stack{
		Auth:       authSvc,
		Sessions:   sessions,
		DeviceLogs: services.NewDeviceLogService(store, repos, opts...),
	}, nil
}
