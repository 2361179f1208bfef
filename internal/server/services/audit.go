package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
)

const auditWriteTimeout = 5 * time.Second

// AuditEvent describes one security-relevant fact. Empty Resource and
// Detail are stored as NULL.
type AuditEvent struct {
	UserID        *int64
	Action        models.AuditAction
	Resource      string
	Detail        string
	SourceAddress string
}

// AuditResult tells the caller whether the entry was written. Callers are
// free to ignore it.
type AuditResult struct {
	Entry *models.AuditEntry
	Err   error
}

func (r AuditResult) OK() bool { return r.Err == nil }

// AuditTrail appends entries to audit_log. A failed write is logged and
// counted but never returned as an error.
type AuditTrail struct {
	store   dbx.Transactor
	repos   repomanager.RepositoryManager
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewAuditTrail(store dbx.Transactor, repos repomanager.RepositoryManager, opts ...Option) *AuditTrail {
	o := buildOptions(opts)
	return &AuditTrail{
		store:   store,
		repos:   repos,
		log:     o.logger.With("module", "audit"),
		metrics: o.metrics,
	}
}

func validAction(a models.AuditAction) bool {
	switch a {
	case models.AuditUserCreated, models.AuditLoginSuccess, models.AuditLoginFailed,
		models.AuditLoginBlocked, models.AuditLogout:
		return true
	}
	return false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Record appends e. The write survives cancellation of ctx so that an
// aborted request still leaves its trace.
func (a *AuditTrail) Record(ctx context.Context, e AuditEvent) AuditResult {
	if !validAction(e.Action) {
		err := fmt.Errorf("%w: unknown audit action %q", common.ErrValidation, e.Action)
		a.fail(ctx, e, err)
		return AuditResult{Err: err}
	}

	entry := &models.AuditEntry{
		UserID:        e.UserID,
		Action:        e.Action,
		Resource:      optional(e.Resource),
		Detail:        optional(e.Detail),
		SourceAddress: e.SourceAddress,
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := a.repos.Audit(a.store.Conn()).Create(wctx, entry); err != nil {
		a.fail(ctx, e, err)
		return AuditResult{Err: err}
	}
	return AuditResult{Entry: entry}
}

func (a *AuditTrail) fail(ctx context.Context, e AuditEvent, err error) {
	a.metrics.AuditWriteFailed()
	a.log.Warn(ctx, "audit write failed", "action", string(e.Action), "source", e.SourceAddress, "error", err)
}
