// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a unique field is already taken.
// Wrapped errors carry a "field" context value naming the column.
var ErrDuplicate = errors.New("duplicate")

// Error codes returned by this package.
const (
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidActivation    = "AUTH_INVALID_ACTIVATION"
	CodeInvalidSession       = "AUTH_INVALID_SESSION"
	CodeInvalidTOTP          = "AUTH_INVALID_TOTP"
	CodeTOTPReplayed         = "AUTH_TOTP_REPLAYED"
	CodeSecondFactorRequired = "AUTH_SECOND_FACTOR_NOT_PENDING"
	CodeNotActivated         = "AUTH_NOT_ACTIVATED"
	CodeAccountLocked        = "AUTH_ACCOUNT_LOCKED"
	CodeTooManyAttempts      = "AUTH_TOO_MANY_ATTEMPTS"
	CodeChallengeExpired     = "AUTH_CHALLENGE_EXPIRED"
	CodeClonedAuthenticator  = "AUTH_CLONED_AUTHENTICATOR"
	CodeWebAuthnFailed       = "AUTH_WEBAUTHN_FAILED"
	CodeInvalidRecoveryKey   = "AUTH_INVALID_RECOVERY_KEY"

	CodeInvalidUsername = "AUTH_INVALID_USERNAME"
	CodeInvalidEmail    = "AUTH_INVALID_EMAIL"
	CodeWeakPassword    = "AUTH_WEAK_PASSWORD"
	CodeBreachedPwd     = "AUTH_BREACHED_PASSWORD"
	CodeInvalidRole     = "AUTH_INVALID_ROLE"
	CodeMalformedInput  = "AUTH_MALFORMED_INPUT"

	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeCredentialExists   = "AUTH_CREDENTIAL_EXISTS"
	CodeTOTPAlreadyEnabled = "AUTH_TOTP_ALREADY_ENABLED"
	CodeTOTPNotEnabled     = "AUTH_TOTP_NOT_ENABLED"

	CodeForbidden    = "AUTH_FORBIDDEN"
	CodeUserNotFound = "AUTH_USER_NOT_FOUND"

	CodeStoreUnavailable = "AUTH_STORE_UNAVAILABLE"
	CodeInternal         = "AUTH_INTERNAL"
)

// errInvalidCredentials is the single answer for bad usernames, bad passwords
// and bad second factors.
func errInvalidCredentials() error {
	return errutil.Authentication(CodeInvalidCredentials).Errorf("invalid username or password")
}

// errInvalidActivation is the single answer for unknown users, already
// activated accounts and wrong PINs.
func errInvalidActivation() error {
	return errutil.Authentication(CodeInvalidActivation).Errorf("invalid activation request")
}

func errInvalidSession() error {
	return errutil.Authentication(CodeInvalidSession).Errorf("invalid or expired session")
}

// storeError classifies an unexpected repository error. Repositories already
// tag transient failures; anything else is internal.
func storeError(op string, err error) error {
	if errutil.IsRetryable(err) {
		return errutil.Transient(CodeStoreUnavailable).With("operation", op).Wrap(err)
	}
	return oops.Code(CodeInternal).With("operation", op).Wrap(err)
}
