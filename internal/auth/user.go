// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"bytes"
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Username and password constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 8
	MaxPasswordLength = 1024
)

var (
	usernameRegex = regexp.MustCompile(`^\w+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

// SecondFactor names a configured second authentication factor.
type SecondFactor string

// Supported second factors.
const (
	SecondFactorTOTP  SecondFactor = "TOTP"
	SecondFactorFIDO2 SecondFactor = "FIDO2"
)

// Activation tracks the e-mail confirmation of a new account.
type Activation struct {
	PIN                 string
	Activated           bool
	RegistrationStarted time.Time
	Registered          *time.Time
}

// CredentialFlags mirrors the authenticator data flags recorded at registration.
type CredentialFlags struct {
	UserPresent    bool `json:"user_present"`
	UserVerified   bool `json:"user_verified"`
	BackupEligible bool `json:"backup_eligible"`
	BackupState    bool `json:"backup_state"`
}

// WebAuthnCredential is a registered FIDO2 authenticator.
type WebAuthnCredential struct {
	ID              []byte          `json:"id"`
	PublicKey       []byte          `json:"public_key"`
	AttestationType string          `json:"attestation_type"`
	Transports      []string        `json:"transports,omitempty"`
	Flags           CredentialFlags `json:"flags"`
	AAGUID          []byte          `json:"aaguid,omitempty"`
	SignCount       uint32          `json:"sign_count"`
	Attachment      string          `json:"attachment,omitempty"`
	// Disabled credentials are never accepted again. Set when an assertion
	// presents a non-increasing signature counter.
	Disabled   bool       `json:"disabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// User is a player account.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Activation   Activation

	TOTPSecret          string
	WebAuthnCredentials []WebAuthnCredential
	// SecondFactorPendingUntil is set after a successful password check when a
	// second factor is configured. Second-factor logins are refused once it
	// has passed or while it is nil.
	SecondFactorPendingUntil *time.Time
	// RecoveryKeyHashes are SHA-256 digests of unused recovery keys.
	RecoveryKeyHashes []string

	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Version is the compare-and-swap token of document stores.
	Version int64
}

// NewUser validates the registration fields and returns an unactivated user
// with a fresh activation PIN.
func NewUser(username, email, passwordHash string, now time.Time) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, errutil.Validation(CodeWeakPassword).Errorf("password hash cannot be empty")
	}
	pin, err := GeneratePIN()
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Activation: Activation{
			PIN:                 pin,
			RegistrationStarted: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateUsername checks length and allowed characters (letters, digits, underscore).
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return errutil.Validation(CodeInvalidUsername).
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Errorf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return errutil.Validation(CodeInvalidUsername).
			Errorf("username may only contain letters, digits and underscores")
	}
	return nil
}

// ValidateEmail checks the address shape.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return errutil.Validation(CodeInvalidEmail).Errorf("malformed email address")
	}
	return nil
}

// ValidatePasswordLength checks the password length policy.
func ValidatePasswordLength(password string) error {
	if len(password) < MinPasswordLength {
		return errutil.Validation(CodeWeakPassword).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return errutil.Validation(CodeWeakPassword).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// IsLocked returns true if the user is currently locked out.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RecordFailure increments the failure counter and sets lockout if the policy threshold is reached.
func (u *User) RecordFailure(policy LockoutPolicy, now time.Time) {
	u.FailedAttempts++
	u.LockedUntil = policy.LockoutTime(u.FailedAttempts, now)
	u.UpdatedAt = now
}

// RecordLogin resets the failure counter and stamps the login time.
func (u *User) RecordLogin(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.SecondFactorPendingUntil = nil
	u.LastLogin = &now
	u.UpdatedAt = now
}

// SecondFactors lists the configured second factors in a stable order.
func (u *User) SecondFactors() []SecondFactor {
	var factors []SecondFactor
	if u.TOTPSecret != "" {
		factors = append(factors, SecondFactorTOTP)
	}
	if len(u.ActiveCredentials()) > 0 {
		factors = append(factors, SecondFactorFIDO2)
	}
	return factors
}

// SecondFactorPending reports whether the password step succeeded recently
// enough for a second factor to complete the login.
func (u *User) SecondFactorPending(now time.Time) bool {
	return u.SecondFactorPendingUntil != nil && now.Before(*u.SecondFactorPendingUntil)
}

// ActiveCredentials returns the credentials that have not been disabled.
func (u *User) ActiveCredentials() []WebAuthnCredential {
	active := make([]WebAuthnCredential, 0, len(u.WebAuthnCredentials))
	for _, c := range u.WebAuthnCredentials {
		if !c.Disabled {
			active = append(active, c)
		}
	}
	return active
}

// Credential returns a pointer to the stored credential with the given ID.
func (u *User) Credential(id []byte) *WebAuthnCredential {
	for i := range u.WebAuthnCredentials {
		if bytes.Equal(u.WebAuthnCredentials[i].ID, id) {
			return &u.WebAuthnCredentials[i]
		}
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping ErrDuplicate when
	// the username or email is taken.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user. Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update applies fn to the stored user atomically and persists the
	// result. If fn returns an error nothing is written and the error is
	// returned unchanged. Returns ErrNotFound if the user is absent.
	Update(ctx context.Context, username string, fn func(*User) error) (*User, error)

	// CredentialOwner returns the username owning a WebAuthn credential ID.
	// Returns ErrNotFound if no user has registered it.
	CredentialOwner(ctx context.Context, credentialID []byte) (string, error)
}
