package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/audit"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/devicelogs"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Audit(db dbx.DBTX) audit.Repository
	DeviceLogs(db dbx.DBTX) devicelogs.Repository
}
