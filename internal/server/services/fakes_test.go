package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/server/auth"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
	auditrepo "github.com/dmitrijs2005/palletkeeper/internal/server/repositories/audit"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/devicelogs"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/sessions"
	usersrepo "github.com/dmitrijs2005/palletkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- transactor ---

// fakeTransactor runs transactions one at a time, which is what a row lock
// on a single user amounts to.
type fakeTransactor struct {
	txMu sync.Mutex
	err  error
}

func (f *fakeTransactor) Conn() dbx.DBTX { return nil }

func (f *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if f.err != nil {
		return f.err
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx, nil)
}

// --- in-memory store ---

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*models.User
	sessions map[string]*models.Session
	audit    []*models.AuditEntry
	logs     []*models.DeviceLog

	roleLocks []string

	usersErr    error
	sessionsErr error
	auditErr    error
	logsErr     error

	// auditCtxErr captures ctx.Err() seen by the audit repo
	auditCtxErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]*models.User{},
		sessions: map[string]*models.Session{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (m *memStore) user(id int64) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (m *memStore) auditEntries(action models.AuditAction) []*models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range m.audit {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.usersErr != nil {
		return nil, r.m.usersErr
	}
	for _, x := range r.m.users {
		if x.Username == u.Username || x.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	u.ID = r.m.id()
	u.CreatedAt = time.Now()
	r.m.users[u.ID] = cloneUser(u)
	return u, nil
}

func (r memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.usersErr != nil {
		return nil, r.m.usersErr
	}
	for _, u := range r.m.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.usersErr != nil {
		return nil, r.m.usersErr
	}
	if u, ok := r.m.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) UpdateLockState(ctx context.Context, id int64, failed int, lockedUntil *time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.FailedAttempts = failed
	u.LockedUntil = lockedUntil
	return nil
}

func (r memUsers) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r memUsers) LockRole(ctx context.Context, role string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.usersErr != nil {
		return r.m.usersErr
	}
	r.m.roleLocks = append(r.m.roleLocks, role)
	return nil
}

func (r memUsers) CountByRole(ctx context.Context, role string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, u := range r.m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type memSessions struct{ m *memStore }

func (r memSessions) Create(ctx context.Context, s *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.sessionsErr != nil {
		return r.m.sessionsErr
	}
	if _, dup := r.m.sessions[s.TokenDigest]; dup {
		return common.ErrConflict
	}
	c := *s
	c.Active = true
	r.m.sessions[s.TokenDigest] = &c
	return nil
}

func (r memSessions) Deactivate(ctx context.Context, digest string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.sessionsErr != nil {
		return false, r.m.sessionsErr
	}
	s, ok := r.m.sessions[digest]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	return true, nil
}

func (r memSessions) IsActive(ctx context.Context, digest string, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.sessionsErr != nil {
		return false, r.m.sessionsErr
	}
	s, ok := r.m.sessions[digest]
	return ok && s.Active && s.ExpiresAt.After(now), nil
}

func (r memSessions) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.sessionsErr != nil {
		return 0, r.m.sessionsErr
	}
	var n int64
	for _, s := range r.m.sessions {
		if s.Active && !s.ExpiresAt.After(now) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

type memAudit struct{ m *memStore }

func (r memAudit) Create(ctx context.Context, e *models.AuditEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.auditCtxErr = ctx.Err()
	if r.m.auditErr != nil {
		return r.m.auditErr
	}
	e.ID = r.m.id()
	e.CreatedAt = time.Now()
	c := *e
	r.m.audit = append(r.m.audit, &c)
	return nil
}

type memLogs struct{ m *memStore }

func (r memLogs) Create(ctx context.Context, l *models.DeviceLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.logsErr != nil {
		return r.m.logsErr
	}
	l.ID = r.m.id()
	l.Timestamp = time.Now()
	c := *l
	r.m.logs = append(r.m.logs, &c)
	return nil
}

func (r memLogs) List(ctx context.Context, limit int, level string) ([]*models.DeviceLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.logsErr != nil {
		return nil, r.m.logsErr
	}
	var out []*models.DeviceLog
	for i := len(r.m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if level == "" || r.m.logs[i].Level == level {
			out = append(out, r.m.logs[i])
		}
	}
	return out, nil
}

func (r memLogs) Stats(ctx context.Context) (*models.DeviceLogStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.logsErr != nil {
		return nil, r.m.logsErr
	}
	st := &models.DeviceLogStats{Total: int64(len(r.m.logs)), ByLevel: map[string]int64{}}
	for _, l := range r.m.logs {
		st.ByLevel[l.Level]++
	}
	if len(r.m.logs) > 0 {
		st.Last = r.m.logs[len(r.m.logs)-1]
	}
	return st, nil
}

func (r memLogs) Clear(ctx context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := int64(len(r.m.logs))
	r.m.logs = nil
	return n, nil
}

type fakeRepoManager struct{ m *memStore }

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return memUsers{f.m} }
func (f *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository        { return memSessions{f.m} }
func (f *fakeRepoManager) Audit(dbx.DBTX) auditrepo.Repository          { return memAudit{f.m} }
func (f *fakeRepoManager) DeviceLogs(dbx.DBTX) devicelogs.Repository    { return memLogs{f.m} }

// --- wiring ---

const (
	testMaxAttempts  = 5
	testLockDuration = 30 * time.Minute
	testLifetime     = 8 * time.Hour
)

type testEnv struct {
	store    *memStore
	tx       *fakeTransactor
	clock    *fakeClock
	metrics  *metrics.Metrics
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	sessions *SessionRegistry
	audit    *AuditTrail
	auth     *AuthService
	logs     *DeviceLogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   newMemStore(),
		tx:      &fakeTransactor{},
		clock:   newFakeClock(),
		metrics: metrics.New(),
		hasher:  auth.NewPasswordHasher(auth.WithIterations(1000)),
	}
	rm := &fakeRepoManager{m: env.store}
	opts := []Option{WithClock(env.clock.Now), WithMetrics(env.metrics)}

	var err error
	env.tokens, err = auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), testLifetime, auth.WithClock(env.clock.Now))
	require.NoError(t, err)

	env.sessions = NewSessionRegistry(env.tx, rm, opts...)
	env.audit = NewAuditTrail(env.tx, rm, opts...)
	env.auth, err = NewAuthService(env.tx, rm, env.tokens, env.hasher,
		auth.NewLockoutPolicy(auth.WithMaxAttempts(testMaxAttempts), auth.WithLockDuration(testLockDuration)),
		env.sessions, env.audit, opts...)
	require.NoError(t, err)
	env.logs = NewDeviceLogService(env.tx, rm, opts...)

	return env
}

// seedUser stores a user directly, bypassing Register.
func (e *testEnv) seedUser(t *testing.T, username, password, role string) *models.User {
	t.Helper()
	cred, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u, err := memUsers{e.store}.Create(context.Background(), &models.User{
		Username:           username,
		Email:              username + "@example.com",
		PasswordCredential: cred,
		Role:               role,
		Active:             true,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, username, password string) *LoginResult {
	t.Helper()
	res, err := e.auth.Login(context.Background(), username, password, "10.0.0.5")
	require.NoError(t, err)
	return res
}

func sortedDetails(entries []*models.AuditEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Detail != nil {
			out = append(out, *e.Detail)
		}
	}
	sort.Strings(out)
	return out
}
