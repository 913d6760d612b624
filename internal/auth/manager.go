// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// DefaultSecondFactorWindow is how long a verified password waits for the
// second factor.
const DefaultSecondFactorWindow = 5 * time.Minute

// ManagerDeps are the collaborators of a Manager. Limiter, Breach, Onboarder,
// Recorder and Logger are optional.
type ManagerDeps struct {
	Users      UserRepository
	Hasher     PasswordHasher
	Sessions   *SessionIssuer
	TOTP       *TOTPEngine
	WebAuthn   *WebAuthnCeremony
	Challenges ChallengeStore
	Limiter    AttemptLimiter
	Breach     BreachChecker
	Mailer     Mailer
	Onboarder  Onboarder
	Recorder   LoginRecorder
	Logger     *slog.Logger

	Lockout            LockoutPolicy
	SecondFactorWindow time.Duration
	ChallengeTTL       time.Duration
	Now                func() time.Time
}

// Manager orchestrates registration, activation, login and second-factor
// management.
type Manager struct {
	users      UserRepository
	hasher     PasswordHasher
	sessions   *SessionIssuer
	totp       *TOTPEngine
	webauthn   *WebAuthnCeremony
	challenges ChallengeStore
	limiter    AttemptLimiter
	breach     BreachChecker
	mailer     Mailer
	onboarder  Onboarder
	recorder   LoginRecorder
	logger     *slog.Logger

	lockout      LockoutPolicy
	window       time.Duration
	challengeTTL time.Duration
	now          func() time.Time
}

// NewManager validates deps and creates a Manager.
func NewManager(deps ManagerDeps) (*Manager, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("user repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("password hasher is required")
	case deps.Sessions == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("session issuer is required")
	case deps.TOTP == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("totp engine is required")
	case deps.WebAuthn == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("webauthn ceremony is required")
	case deps.Challenges == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("challenge store is required")
	case deps.Mailer == nil:
		return nil, oops.Code("AUTH_MANAGER_CONFIG").Errorf("mailer is required")
	}

	m := &Manager{
		users:        deps.Users,
		hasher:       deps.Hasher,
		sessions:     deps.Sessions,
		totp:         deps.TOTP,
		webauthn:     deps.WebAuthn,
		challenges:   deps.Challenges,
		limiter:      deps.Limiter,
		breach:       deps.Breach,
		mailer:       deps.Mailer,
		onboarder:    deps.Onboarder,
		recorder:     deps.Recorder,
		logger:       deps.Logger,
		lockout:      deps.Lockout,
		window:       deps.SecondFactorWindow,
		challengeTTL: deps.ChallengeTTL,
		now:          deps.Now,
	}
	if m.breach == nil {
		m.breach = NoBreachCheck{}
	}
	if m.recorder == nil {
		m.recorder = noopRecorder{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.lockout.Threshold <= 0 {
		m.lockout = DefaultLockoutPolicy
	}
	if m.window <= 0 {
		m.window = DefaultSecondFactorWindow
	}
	if m.challengeTTL <= 0 {
		m.challengeTTL = 2 * time.Minute
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// RegisterRequest holds the fields of a registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// RegisterResult describes a new, unactivated account.
type RegisterResult struct {
	User *User
	// Warnings are soft failures, such as an activation mail that could not
	// be queued.
	Warnings []string
}

// ActivationResult is returned once an account is activated.
type ActivationResult struct {
	User  *User
	Token string
	// RecoveryKeys are shown exactly once. Only their digests are stored.
	RecoveryKeys []string
}

// LoginResult is the outcome of a login step. Token is empty while
// SecondFactors lists the factors still required.
type LoginResult struct {
	User          *User
	Token         string
	Claims        *Claims
	SecondFactors []SecondFactor
}

// Register validates and stores a new unactivated user and queues the
// activation mail.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := m.checkPasswordPolicy(ctx, req.Password); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}
	user, err := NewUser(req.Username, req.Email, hash, m.now())
	if err != nil {
		return nil, err
	}

	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, duplicateUserError(err)
		}
		return nil, storeError("create user", err)
	}

	result := &RegisterResult{User: user}
	msg := ActivationMessage{Username: user.Username, Email: user.Email, PIN: user.Activation.PIN}
	if err := m.mailer.SendActivation(ctx, msg); err != nil {
		errutil.LogWarnContext(ctx, m.logger, "activation mail not queued", err, "username", user.Username)
		result.Warnings = append(result.Warnings, "activation mail could not be sent")
	}

	m.logger.InfoContext(ctx, "user registered", "username", user.Username)
	return result, nil
}

// duplicateUserError maps a repository uniqueness violation to a conflict
// naming the taken field.
func duplicateUserError(err error) error {
	field := "username"
	if oopsErr, ok := oops.AsOops(err); ok {
		if f, ok := oopsErr.Context()["field"].(string); ok {
			field = f
		}
	}
	if field == "email" {
		return errutil.Conflict(CodeEmailTaken).Errorf("email address already registered")
	}
	return errutil.Conflict(CodeUsernameTaken).Errorf("username already taken")
}

// checkPasswordPolicy enforces the length policy and the leaked-password
// list. A failing breach lookup is logged and ignored.
func (m *Manager) checkPasswordPolicy(ctx context.Context, password string) error {
	if err := ValidatePasswordLength(password); err != nil {
		return err
	}
	breached, err := m.breach.IsBreached(ctx, password)
	if err != nil {
		errutil.LogWarnContext(ctx, m.logger, "breached password lookup failed", err)
		return nil
	}
	if breached {
		return errutil.Validation(CodeBreachedPwd).Errorf("password appears in a list of leaked passwords")
	}
	return nil
}

// Activate confirms the PIN mailed at registration. Unknown users, activated
// accounts and wrong PINs produce the same error.
func (m *Manager) Activate(ctx context.Context, username, pin string) (*ActivationResult, error) {
	if err := m.allow(ctx, limiterKeyActivation+username); err != nil {
		return nil, err
	}

	keys, hashes, err := GenerateRecoveryKeys()
	if err != nil {
		return nil, err
	}

	now := m.now()
	user, err := m.users.Update(ctx, username, func(u *User) error {
		if u.Activation.Activated || !VerifyPIN(pin, u.Activation.PIN) {
			return errInvalidActivation()
		}
		u.Activation.Activated = true
		u.Activation.Registered = &now
		u.RecoveryKeyHashes = hashes
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidActivation()
		}
		if errutil.CodeOf(err) == CodeInvalidActivation {
			return nil, err
		}
		return nil, storeError("activate user", err)
	}
	m.reset(ctx, limiterKeyActivation+username)

	if m.onboarder != nil {
		if err := m.onboarder.StartGame(ctx, username); err != nil {
			errutil.LogErrorContext(ctx, m.logger, "start game after activation", err, "username", username)
		}
	}

	token, _, err := m.sessions.Issue(user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "user activated", "username", username)
	return &ActivationResult{User: user, Token: token, RecoveryKeys: keys}, nil
}

// VerifyPassword checks username and password in constant time with respect
// to whether the user exists. Failures count towards the lockout policy.
func (m *Manager) VerifyPassword(ctx context.Context, username, password string) (*User, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, storeError("get user", err)
	}

	if user == nil {
		//nolint:errcheck // equalises timing with the real lookup
		_, _ = m.hasher.Verify(password, m.hasher.DummyHash())
		return nil, errInvalidCredentials()
	}

	valid, err := m.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, oops.Code(CodeInternal).
			With("operation", "verify password").
			With("username", username).
			Wrap(err)
	}

	// A locked account answers the same for every password.
	now := m.now()
	if user.IsLocked(now) {
		return nil, errutil.RateLimited(CodeAccountLocked).
			With("retry_after", m.lockout.Remaining(user.LockedUntil, now).String()).
			Errorf("account is temporarily locked")
	}

	if !valid {
		if _, updateErr := m.users.Update(ctx, username, func(u *User) error {
			u.RecordFailure(m.lockout, now)
			return nil
		}); updateErr != nil {
			errutil.LogWarnContext(ctx, m.logger, "record login failure", updateErr, "username", username)
		}
		return nil, errInvalidCredentials()
	}
	return user, nil
}

// ChangePassword re-verifies the old password and stores a hash of the new
// one under the registration policy.
func (m *Manager) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if _, err := m.VerifyPassword(ctx, username, oldPassword); err != nil {
		return err
	}
	if err := m.checkPasswordPolicy(ctx, newPassword); err != nil {
		return err
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}

	now := m.now()
	if _, err := m.users.Update(ctx, username, func(u *User) error {
		u.PasswordHash = hash
		u.UpdatedAt = now
		return nil
	}); err != nil {
		return storeError("change password", err)
	}
	m.logger.InfoContext(ctx, "password changed", "username", username)
	return nil
}

// RecoverAccount consumes one recovery key to set a new password. It also
// removes the TOTP secret and clears any lockout, since a lost authenticator
// is the usual reason for recovery.
func (m *Manager) RecoverAccount(ctx context.Context, username, key, newPassword string) error {
	if err := m.allow(ctx, limiterKeyRecovery+username); err != nil {
		return err
	}
	if err := m.checkPasswordPolicy(ctx, newPassword); err != nil {
		return err
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}

	now := m.now()
	_, err = m.users.Update(ctx, username, func(u *User) error {
		idx := MatchRecoveryKey(key, u.RecoveryKeyHashes)
		if idx < 0 {
			return errInvalidRecoveryKey()
		}
		u.RecoveryKeyHashes = append(u.RecoveryKeyHashes[:idx:idx], u.RecoveryKeyHashes[idx+1:]...)
		u.PasswordHash = hash
		u.TOTPSecret = ""
		u.SecondFactorPendingUntil = nil
		u.FailedAttempts = 0
		u.LockedUntil = nil
		u.UpdatedAt = now
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return errInvalidRecoveryKey()
	case errutil.CodeOf(err) == CodeInvalidRecoveryKey:
		return err
	default:
		return storeError("recover account", err)
	}

	m.reset(ctx, limiterKeyRecovery+username)
	m.logger.InfoContext(ctx, "account recovered", "username", username)
	return nil
}

func errInvalidRecoveryKey() error {
	return errutil.Authentication(CodeInvalidRecoveryKey).Errorf("invalid username or recovery key")
}

// Logout verifies token and records the logout. Sessions are stateless so
// nothing is revoked.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.sessions.Verify(token)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "user logged out", "username", claims.Username(), "jti", claims.ID)
	return nil
}

// GetUser returns the user or a NotFound error.
func (m *Manager) GetUser(ctx context.Context, username string) (*User, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errutil.NotFound(CodeUserNotFound).With("username", username).Errorf("user not found")
		}
		return nil, storeError("get user", err)
	}
	return user, nil
}

// Promote raises target to role on behalf of actor. Actors must be admins,
// cannot promote themselves, and the new role must exceed the current one.
func (m *Manager) Promote(ctx context.Context, actor, target string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, errutil.Validation(CodeInvalidRole).With("role", int(role)).Errorf("unknown role")
	}
	if actor == target {
		return nil, errutil.Authorization(CodeForbidden).Errorf("cannot change your own role")
	}
	admin, err := m.GetUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !admin.Role.AtLeast(RoleAdmin) {
		return nil, errutil.Authorization(CodeForbidden).Errorf("admin role required")
	}

	user, err := m.updateRole(ctx, target, func(current Role) error {
		if role <= current {
			return errutil.Validation(CodeInvalidRole).
				With("current", current.String()).
				With("requested", role.String()).
				Errorf("new role must be higher than the current role")
		}
		return nil
	}, role)
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "user promoted", "actor", actor, "username", target, "role", role.String())
	return user, nil
}

// AssignRole sets the role of username without actor checks. Used by
// operator tooling.
func (m *Manager) AssignRole(ctx context.Context, username string, role Role) (*User, error) {
	if !role.Valid() || role == RoleAnonymous {
		return nil, errutil.Validation(CodeInvalidRole).With("role", role.String()).Errorf("role cannot be assigned")
	}
	return m.updateRole(ctx, username, func(Role) error { return nil }, role)
}

func (m *Manager) updateRole(ctx context.Context, username string, check func(Role) error, role Role) (*User, error) {
	now := m.now()
	user, err := m.users.Update(ctx, username, func(u *User) error {
		if err := check(u.Role); err != nil {
			return err
		}
		u.Role = role
		u.UpdatedAt = now
		return nil
	})
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, ErrNotFound):
		return nil, errutil.NotFound(CodeUserNotFound).With("username", username).Errorf("user not found")
	case errutil.CodeOf(err) == CodeInvalidRole:
		return nil, err
	default:
		return nil, storeError("update role", err)
	}
}

// allow consults the attempt limiter, failing open when it is unavailable.
func (m *Manager) allow(ctx context.Context, key string) error {
	if m.limiter == nil {
		return nil
	}
	ok, err := m.limiter.Allow(ctx, key)
	if err != nil {
		errutil.LogWarnContext(ctx, m.logger, "attempt limiter unavailable", err, "key", key)
		return nil
	}
	if !ok {
		return errutil.RateLimited(CodeTooManyAttempts).Errorf("too many attempts, try again later")
	}
	return nil
}

func (m *Manager) reset(ctx context.Context, key string) {
	if m.limiter == nil {
		return
	}
	if err := m.limiter.Reset(ctx, key); err != nil {
		errutil.LogWarnContext(ctx, m.logger, "attempt limiter reset failed", err, "key", key)
	}
}
