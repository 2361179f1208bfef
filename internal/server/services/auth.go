package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/dbx"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/auth"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
)

// Identity is what a verified bearer token with a live session resolves to.
type Identity struct {
	UserID int64
	Token  string
}

type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	SessionID string
	User      *models.Profile
}

// AuthService orchestrates registration, login, logout and identity checks.
// Every login outcome is written to the audit trail.
type AuthService struct {
	store    dbx.Transactor
	repos    repomanager.RepositoryManager
	tokens   *auth.TokenService
	hasher   *auth.PasswordHasher
	lockout  *auth.LockoutPolicy
	sessions *SessionRegistry
	audit    *AuditTrail

	now     func() time.Time
	log     logging.Logger
	metrics *metrics.Metrics

	// verified against when the username is unknown, so both paths pay for
	// one key derivation
	dummyCredential string
}

func NewAuthService(
	store dbx.Transactor,
	repos repomanager.RepositoryManager,
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	lockout *auth.LockoutPolicy,
	sessions *SessionRegistry,
	audit *AuditTrail,
	opts ...Option,
) (*AuthService, error) {
	o := buildOptions(opts)

	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy credential: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy credential: %w", err)
	}

	return &AuthService{
		store:           store,
		repos:           repos,
		tokens:          tokens,
		hasher:          hasher,
		lockout:         lockout,
		sessions:        sessions,
		audit:           audit,
		now:             o.now,
		log:             o.logger.With("module", "auth"),
		metrics:         o.metrics,
		dummyCredential: dummy,
	}, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}

func lockState(u *models.User) auth.LockState {
	return auth.LockState{FailedAttempts: u.FailedAttempts, LockedUntil: u.LockedUntil}
}

func userRef(id int64) *int64 { return &id }

// Authenticate resolves token to an Identity. The token must verify and its
// session must still be open.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	active, err := s.sessions.IsActive(ctx, token)
	if err != nil {
		return Identity{}, storeErr(err)
	}
	if !active {
		return Identity{}, fmt.Errorf("%w: session closed", common.ErrorUnauthorized)
	}

	return Identity{UserID: userID, Token: token}, nil
}

// Register creates a user on behalf of an authenticated, active admin.
func (s *AuthService) Register(ctx context.Context, callerToken string, req RegisterRequest, sourceAddress string) (*models.Profile, error) {
	caller, err := s.Authenticate(ctx, callerToken)
	if err != nil {
		return nil, err
	}

	admin, err := s.repos.Users(s.store.Conn()).GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: caller no longer exists", common.ErrorUnauthorized)
		}
		return nil, storeErr(err)
	}
	if !admin.Active || !admin.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", common.ErrorUnauthorized)
	}

	user, err := s.createUser(ctx, s.store.Conn(), req)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		UserID:        userRef(admin.ID),
		Action:        models.AuditUserCreated,
		Resource:      user.Username,
		Detail:        "role " + user.Role,
		SourceAddress: sourceAddress,
	})
	s.log.Info(ctx, "user registered", "user_id", user.ID, "by", admin.ID)

	return user.Profile(), nil
}

// BootstrapAdmin creates the first admin account. It fails with
// common.ErrConflict once any admin exists.
func (s *AuthService) BootstrapAdmin(ctx context.Context, username, email, password string) (*models.Profile, error) {
	var user *models.User

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repos.Users(tx)

		// serializes concurrent bootstraps until commit
		if err := users.LockRole(ctx, models.RoleAdmin); err != nil {
			return storeErr(err)
		}

		n, err := users.CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return storeErr(err)
		}
		if n > 0 {
			return fmt.Errorf("%w: an admin account already exists", common.ErrConflict)
		}

		user, err = s.createUser(ctx, tx, RegisterRequest{
			Username: username,
			Email:    email,
			Password: password,
			Role:     models.RoleAdmin,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	s.audit.Record(ctx, AuditEvent{
		Action:   models.AuditUserCreated,
		Resource: user.Username,
		Detail:   "bootstrap admin",
	})
	return user.Profile(), nil
}

func (s *AuthService) createUser(ctx context.Context, db dbx.DBTX, req RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))

	switch {
	case req.Username == "":
		return nil, fmt.Errorf("%w: username is required", common.ErrValidation)
	case req.Email == "":
		return nil, fmt.Errorf("%w: email is required", common.ErrValidation)
	case req.Password == "":
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	if req.Role == "" {
		req.Role = models.RoleOperator
	}

	credential, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repos.Users(db).Create(ctx, &models.User{
		Username:           req.Username,
		Email:              req.Email,
		PasswordCredential: credential,
		Role:               req.Role,
		Active:             true,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	return user, nil
}

// Login checks username and password and opens a session. Unknown users
// and wrong passwords both yield common.ErrorUnauthorized; inactive or
// locked accounts yield common.ErrForbidden.
func (s *AuthService) Login(ctx context.Context, username, password, sourceAddress string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	user, err := s.repos.Users(s.store.Conn()).GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, storeErr(err)
		}
		s.hasher.Verify(password, s.dummyCredential)
		s.metrics.LoginAttempt(metrics.LoginFailed)
		s.audit.Record(ctx, AuditEvent{
			Action:        models.AuditLoginFailed,
			Resource:      username,
			Detail:        "unknown username",
			SourceAddress: sourceAddress,
		})
		return nil, fmt.Errorf("%w: invalid credentials", common.ErrorUnauthorized)
	}

	if blocked := s.blockedReason(user); blocked != "" {
		return nil, s.reject(ctx, user, blocked, sourceAddress)
	}

	if !s.hasher.Verify(password, user.PasswordCredential) {
		return nil, s.registerFailure(ctx, user, sourceAddress)
	}

	var (
		issued    auth.IssuedToken
		sessionID string
		profile   *models.Profile
		now       = s.now()
		blocked   string
	)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repos.Users(tx)

		// re-read under the row lock; a concurrent request may have locked it
		fresh, err := users.GetByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		if blocked = s.blockedReason(fresh); blocked != "" {
			return nil
		}

		reset := s.lockout.OnSuccess(lockState(fresh))
		if err := users.UpdateLockState(ctx, fresh.ID, reset.FailedAttempts, reset.LockedUntil); err != nil {
			return err
		}
		if err := users.RecordLogin(ctx, fresh.ID, now); err != nil {
			return err
		}

		issued, err = s.tokens.Issue(fresh.ID)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}

		sessionID, err = s.sessions.Open(ctx, tx, fresh.ID, issued, sourceAddress)
		if err != nil {
			return err
		}

		fresh.LastLoginAt = &now
		profile = fresh.Profile()
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "login transaction failed", "user_id", user.ID, "error", err)
		return nil, storeErr(err)
	}
	if blocked != "" {
		return nil, s.reject(ctx, user, blocked, sourceAddress)
	}

	s.metrics.LoginAttempt(metrics.LoginSuccess)
	s.audit.Record(ctx, AuditEvent{
		UserID:        userRef(user.ID),
		Action:        models.AuditLoginSuccess,
		Resource:      sessionID,
		SourceAddress: sourceAddress,
	})
	s.log.Info(ctx, "login succeeded", "user_id", user.ID, "source", sourceAddress)

	return &LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		SessionID: sessionID,
		User:      profile,
	}, nil
}

func (s *AuthService) blockedReason(u *models.User) string {
	switch {
	case !u.Active:
		return "account inactive"
	case s.lockout.IsLocked(lockState(u), s.now()):
		return "account locked"
	}
	return ""
}

// reject handles an attempt against an inactive or locked account. The
// password is not looked at; a locked account still counts the attempt.
func (s *AuthService) reject(ctx context.Context, u *models.User, reason, sourceAddress string) error {
	if u.Active {
		if _, err := s.applyFailure(ctx, u.ID); err != nil {
			s.log.Warn(ctx, "could not record blocked attempt", "user_id", u.ID, "error", err)
		}
	}

	s.metrics.LoginAttempt(metrics.LoginBlocked)
	s.audit.Record(ctx, AuditEvent{
		UserID:        userRef(u.ID),
		Action:        models.AuditLoginBlocked,
		Resource:      u.Username,
		Detail:        reason,
		SourceAddress: sourceAddress,
	})
	return fmt.Errorf("%w: %s", common.ErrForbidden, reason)
}

func (s *AuthService) registerFailure(ctx context.Context, u *models.User, sourceAddress string) error {
	locked, err := s.applyFailure(ctx, u.ID)
	if err != nil {
		s.log.Error(ctx, "could not record failed attempt", "user_id", u.ID, "error", err)
		s.metrics.LoginAttempt(metrics.LoginFailed)
		s.audit.Record(ctx, AuditEvent{
			UserID:        userRef(u.ID),
			Action:        models.AuditLoginFailed,
			Resource:      u.Username,
			Detail:        "invalid password, attempt not counted",
			SourceAddress: sourceAddress,
		})
		return err
	}

	detail := "invalid password"
	if locked {
		detail = "invalid password, account locked"
		s.metrics.LoginAttempt(metrics.LoginLocked)
		s.log.Warn(ctx, "account locked", "user_id", u.ID, "source", sourceAddress)
	}

	s.metrics.LoginAttempt(metrics.LoginFailed)
	s.audit.Record(ctx, AuditEvent{
		UserID:        userRef(u.ID),
		Action:        models.AuditLoginFailed,
		Resource:      u.Username,
		Detail:        detail,
		SourceAddress: sourceAddress,
	})
	return fmt.Errorf("%w: invalid credentials", common.ErrorUnauthorized)
}

// applyFailure runs the lockout policy against the row-locked user and
// reports whether this attempt locked the account.
func (s *AuthService) applyFailure(ctx context.Context, userID int64) (bool, error) {
	var locked bool

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repos.Users(tx)

		u, err := users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		var next auth.LockState
		next, locked = s.lockout.OnFailure(lockState(u), s.now())

		return users.UpdateLockState(ctx, u.ID, next.FailedAttempts, next.LockedUntil)
	})
	if err != nil {
		return false, storeErr(err)
	}
	return locked, nil
}

// Logout closes the session of token. Only the signature and expiry are
// checked, so logging out twice succeeds.
func (s *AuthService) Logout(ctx context.Context, token, sourceAddress string) error {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	if err := s.sessions.Close(ctx, token); err != nil {
		return storeErr(err)
	}

	s.audit.Record(ctx, AuditEvent{
		UserID:        userRef(userID),
		Action:        models.AuditLogout,
		SourceAddress: sourceAddress,
	})
	return nil
}

// WhoAmI returns the profile of the token's owner.
func (s *AuthService) WhoAmI(ctx context.Context, token string) (*models.Profile, error) {
	id, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, id)
}

// Profile loads the user behind an already authenticated identity.
func (s *AuthService) Profile(ctx context.Context, id Identity) (*models.Profile, error) {
	user, err := s.repos.Users(s.store.Conn()).GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	return user.Profile(), nil
}
