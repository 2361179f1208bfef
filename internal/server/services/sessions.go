package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/auth"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SessionRegistry tracks issued tokens so they can be revoked before they
// expire. Tokens are looked up by digest and never stored raw.
type SessionRegistry struct {
	store   dbx.Transactor
	repos   repomanager.RepositoryManager
	now     func() time.Time
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewSessionRegistry(store dbx.Transactor, repos repomanager.RepositoryManager, opts ...Option) *SessionRegistry {
	o := buildOptions(opts)
	return &SessionRegistry{
		store:   store,
		repos:   repos,
		now:     o.now,
		log:     o.logger.With("module", "sessions"),
		metrics: o.metrics,
	}
}

// Open records a session for issued inside the caller's transaction tx.
func (r *SessionRegistry) Open(ctx context.Context, tx dbx.DBTX, userID int64, issued auth.IssuedToken, sourceAddress string) (string, error) {
	s := &models.Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		TokenDigest:   auth.TokenDigest(issued.Token),
		SourceAddress: sourceAddress,
		CreatedAt:     issued.IssuedAt,
		ExpiresAt:     issued.ExpiresAt,
	}

	if err := r.repos.Sessions(tx).Create(ctx, s); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return s.ID, nil
}

// Close deactivates the session of token. Closing an unknown or already
// closed session succeeds.
func (r *SessionRegistry) Close(ctx context.Context, token string) error {
	closed, err := r.repos.Sessions(r.store.Conn()).Deactivate(ctx, auth.TokenDigest(token))
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if !closed {
		r.log.Debug(ctx, "session already closed or unknown")
	}
	return nil
}

func (r *SessionRegistry) IsActive(ctx context.Context, token string) (bool, error) {
	ok, err := r.repos.Sessions(r.store.Conn()).IsActive(ctx, auth.TokenDigest(token), r.now())
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return ok, nil
}

// Sweep deactivates sessions whose tokens have expired.
func (r *SessionRegistry) Sweep(ctx context.Context) (int64, error) {
	n, err := r.repos.Sessions(r.store.Conn()).DeactivateExpired(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	r.metrics.SessionsSwept(n)
	if n > 0 {
		r.log.Info(ctx, "expired sessions deactivated", "count", n)
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Warn(ctx, "session sweep failed", "error", err)
			}
		}
	}
}
