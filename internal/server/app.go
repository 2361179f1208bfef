// Package server initializes and runs the palletkeeper server: the REST API,
// the gRPC health endpoint and the background session sweeper, with graceful
// shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/config"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/palletkeeper/internal/server/rest"

	gs "github.com/dmitrijs2005/palletkeeper/internal/server/grpc"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterCleanupEvery = time.Minute
	healthCheckInterval = 15 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics
	stack   *Stack
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	repos := repomanager.NewPostgresRepositoryManager()
	db, err := OpenDatabase(ctx, c.DatabaseDSN, repos)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := metrics.New()
	stack, err := NewStack(c, db, repos, logger, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{config: c, logger: logger, db: db, metrics: m, stack: stack}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc, limiter *rest.RateLimiter) {
	h := rest.NewHandlers(app.stack.Auth, app.stack.DeviceLogs, app.logger)
	router := rest.NewRouter(h, limiter, app.metrics, app.logger)

	if err := rest.NewServer(app.config.HTTPAddr, router, app.logger).Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCHealthAddr, app.db, healthCheckInterval, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc health server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails, then waits
// for every component to stop and closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	limiter := rest.NewRateLimiter(app.config.LoginRateLimitRPS, app.config.LoginRateLimitBurst, limiterIdleTTL)

	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc, limiter)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.stack.Sessions.Run(ctx, app.config.SessionSweepInterval)
	}()
	go func() {
		defer wg.Done()
		limiter.Run(ctx, limiterCleanupEvery)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
