// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"errors"
	"io"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// EnableTOTPStart generates a secret and parks it in the challenge store
// until EnableTOTPConfirm proves the authenticator app has it.
func (m *Manager) EnableTOTPStart(ctx context.Context, username string) (*TOTPProvisioning, error) {
	user, err := m.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.TOTPSecret != "" {
		return nil, errutil.Conflict(CodeTOTPAlreadyEnabled).Errorf("one-time codes are already enabled")
	}

	prov, err := m.totp.Generate(username)
	if err != nil {
		return nil, err
	}
	if err := putChallenge(ctx, m.challenges, challengeTOTPEnrol+username, prov.Secret, m.challengeTTL); err != nil {
		return nil, err
	}
	return prov, nil
}

// EnableTOTPConfirm commits the pending secret once code verifies against it.
// A rejected code leaves the pending secret in place so the user can retry
// with the authenticator they already set up.
func (m *Manager) EnableTOTPConfirm(ctx context.Context, username, code string) error {
	if err := m.allow(ctx, limiterKeyTOTP+username); err != nil {
		return err
	}
	key := challengeTOTPEnrol + username
	var secret string
	if err := takeChallenge(ctx, m.challenges, key, &secret); err != nil {
		return err
	}
	if err := m.totp.Verify(ctx, username, secret, code); err != nil {
		if putErr := putChallenge(ctx, m.challenges, key, secret, m.challengeTTL); putErr != nil {
			errutil.LogWarnContext(ctx, m.logger, "restore pending totp secret", putErr, "username", username)
		}
		return err
	}

	now := m.now()
	_, err := m.users.Update(ctx, username, func(u *User) error {
		if u.TOTPSecret != "" {
			return errutil.Conflict(CodeTOTPAlreadyEnabled).Errorf("one-time codes are already enabled")
		}
		u.TOTPSecret = secret
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return mfaUpdateError("enable totp", username, err)
	}
	m.reset(ctx, limiterKeyTOTP+username)
	m.logger.InfoContext(ctx, "totp enabled", "username", username)
	return nil
}

// DisableTOTP removes the TOTP secret after checking a current code.
func (m *Manager) DisableTOTP(ctx context.Context, username, code string) error {
	user, err := m.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return errutil.Validation(CodeTOTPNotEnabled).Errorf("one-time codes are not enabled")
	}
	if err := m.verifyTOTP(ctx, user, code); err != nil {
		return err
	}

	now := m.now()
	if _, err := m.users.Update(ctx, username, func(u *User) error {
		u.TOTPSecret = ""
		u.UpdatedAt = now
		return nil
	}); err != nil {
		return mfaUpdateError("disable totp", username, err)
	}
	m.logger.InfoContext(ctx, "totp disabled", "username", username)
	return nil
}

// EnableWebAuthnStart issues creation options for a new authenticator.
func (m *Manager) EnableWebAuthnStart(ctx context.Context, username string) (*protocol.CredentialCreation, error) {
	user, err := m.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return m.webauthn.BeginRegistration(ctx, user)
}

// EnableWebAuthnFinish verifies the attestation read from body and stores
// the credential. A credential ID registered by anyone already is a conflict.
func (m *Manager) EnableWebAuthnFinish(ctx context.Context, username string, body io.Reader) (*WebAuthnCredential, error) {
	data, err := readCeremonyBody(body)
	if err != nil {
		return nil, err
	}
	user, err := m.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	cred, err := m.webauthn.FinishRegistration(ctx, user, data, m.now())
	if err != nil {
		return nil, err
	}

	if _, err := m.users.CredentialOwner(ctx, cred.ID); err == nil {
		return nil, errCredentialExists()
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeError("look up credential owner", err)
	}

	_, err = m.users.Update(ctx, username, func(u *User) error {
		if u.Credential(cred.ID) != nil {
			return errCredentialExists()
		}
		u.WebAuthnCredentials = append(u.WebAuthnCredentials, *cred)
		u.UpdatedAt = cred.CreatedAt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, errCredentialExists()
		}
		return nil, mfaUpdateError("add webauthn credential", username, err)
	}
	m.logger.InfoContext(ctx, "webauthn credential registered", "username", username)
	return cred, nil
}

func errCredentialExists() error {
	return errutil.Conflict(CodeCredentialExists).Errorf("authenticator already registered")
}

// mfaUpdateError passes through errors produced inside an update function
// and classifies repository failures.
func mfaUpdateError(op, username string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errutil.NotFound(CodeUserNotFound).With("username", username).Errorf("user not found")
	case errutil.Is(err, errutil.KindConflict):
		return err
	default:
		return storeError(op, err)
	}
}
