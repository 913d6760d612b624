// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// maxCeremonyBody bounds WebAuthn response bodies.
const maxCeremonyBody = 64 << 10

// Login verifies the password and, when no second factor is configured,
// issues a session. Users with only TOTP may pass totpCode to finish in one
// step. Users with a WebAuthn credential always complete a second step.
func (m *Manager) Login(ctx context.Context, username, password, totpCode string) (*LoginResult, error) {
	user, err := m.VerifyPassword(ctx, username, password)
	if err != nil {
		m.recordLoginError(err)
		return nil, err
	}
	if !user.Activation.Activated {
		m.recorder.RecordLogin(LoginResultFailure)
		return nil, errutil.Authentication(CodeNotActivated).Errorf("account is not activated")
	}

	factors := user.SecondFactors()
	if len(factors) == 0 {
		return m.completeLogin(ctx, username)
	}

	if totpCode != "" && !slices.Contains(factors, SecondFactorFIDO2) {
		if err := m.verifyTOTP(ctx, user, totpCode); err != nil {
			m.recorder.RecordLogin(LoginResultFailure)
			return nil, err
		}
		return m.completeLogin(ctx, username)
	}

	pendingUntil := m.now().Add(m.window)
	user, err = m.users.Update(ctx, username, func(u *User) error {
		u.SecondFactorPendingUntil = &pendingUntil
		return nil
	})
	if err != nil {
		return nil, storeError("mark second factor pending", err)
	}
	m.recorder.RecordLogin(LoginResultSecondFactor)
	return &LoginResult{User: user, SecondFactors: factors}, nil
}

// LoginTOTP completes a login that is waiting for a TOTP code.
func (m *Manager) LoginTOTP(ctx context.Context, username, code string) (*LoginResult, error) {
	user, err := m.pendingUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.TOTPSecret == "" {
		return nil, errutil.Authentication(CodeSecondFactorRequired).Errorf("no one-time code configured")
	}
	if err := m.verifyTOTP(ctx, user, code); err != nil {
		m.recorder.RecordLogin(LoginResultFailure)
		return nil, err
	}
	return m.completeLogin(ctx, username)
}

// LoginWebAuthnStart issues an assertion challenge for a login waiting for
// its second factor.
func (m *Manager) LoginWebAuthnStart(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	user, err := m.pendingUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return m.webauthn.BeginLogin(ctx, user)
}

// LoginWebAuthnFinish verifies the assertion read from body. A credential
// presenting a non-increasing signature counter is disabled permanently.
func (m *Manager) LoginWebAuthnFinish(ctx context.Context, username string, body io.Reader) (*LoginResult, error) {
	data, err := readCeremonyBody(body)
	if err != nil {
		return nil, err
	}
	user, err := m.pendingUser(ctx, username)
	if err != nil {
		return nil, err
	}

	result, err := m.webauthn.FinishLogin(ctx, user, data)
	if err != nil {
		m.recorder.RecordLogin(LoginResultFailure)
		if result != nil && result.Cloned {
			m.disableCredential(ctx, username, result.CredentialID)
		}
		return nil, err
	}

	now := m.now()
	cloned := false
	user, err = m.users.Update(ctx, username, func(u *User) error {
		cred := u.Credential(result.CredentialID)
		if cred == nil || cred.Disabled {
			return errInvalidCredentials()
		}
		// A concurrent login may have advanced the counter since FinishLogin read it.
		if result.SignCount <= cred.SignCount {
			cred.Disabled = true
			cloned = true
			return nil
		}
		cred.SignCount = result.SignCount
		cred.LastUsedAt = &now
		u.RecordLogin(now)
		return nil
	})
	if err != nil {
		if errutil.CodeOf(err) == CodeInvalidCredentials {
			return nil, err
		}
		return nil, storeError("record webauthn login", err)
	}
	if cloned {
		m.recorder.RecordLogin(LoginResultFailure)
		m.logger.WarnContext(ctx, "authenticator disabled after counter regression", "username", username)
		return nil, errutil.Authentication(CodeClonedAuthenticator).Errorf("authenticator signature counter did not increase")
	}

	return m.issueLogin(user)
}

func (m *Manager) disableCredential(ctx context.Context, username string, id []byte) {
	now := m.now()
	_, err := m.users.Update(ctx, username, func(u *User) error {
		if cred := u.Credential(id); cred != nil {
			cred.Disabled = true
		}
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger, "disable cloned authenticator", err, "username", username)
		return
	}
	m.logger.WarnContext(ctx, "authenticator disabled after counter regression", "username", username)
}

// pendingUser returns the user if a password step succeeded within the
// second-factor window.
func (m *Manager) pendingUser(ctx context.Context, username string) (*User, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errutil.Authentication(CodeSecondFactorRequired).Errorf("no login awaiting a second factor")
		}
		return nil, storeError("get user", err)
	}
	if !user.SecondFactorPending(m.now()) {
		return nil, errutil.Authentication(CodeSecondFactorRequired).Errorf("no login awaiting a second factor")
	}
	return user, nil
}

func (m *Manager) verifyTOTP(ctx context.Context, user *User, code string) error {
	if err := m.allow(ctx, limiterKeyTOTP+user.Username); err != nil {
		return err
	}
	if err := m.totp.Verify(ctx, user.Username, user.TOTPSecret, code); err != nil {
		return err
	}
	m.reset(ctx, limiterKeyTOTP+user.Username)
	return nil
}

// completeLogin records a successful login and issues a session.
func (m *Manager) completeLogin(ctx context.Context, username string) (*LoginResult, error) {
	now := m.now()
	user, err := m.users.Update(ctx, username, func(u *User) error {
		u.RecordLogin(now)
		return nil
	})
	if err != nil {
		return nil, storeError("record login", err)
	}
	return m.issueLogin(user)
}

func (m *Manager) issueLogin(user *User) (*LoginResult, error) {
	token, claims, err := m.sessions.Issue(user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	m.recorder.RecordLogin(LoginResultSuccess)
	return &LoginResult{User: user, Token: token, Claims: claims}, nil
}

func (m *Manager) recordLoginError(err error) {
	if errutil.CodeOf(err) == CodeAccountLocked {
		m.recorder.RecordLogin(LoginResultLocked)
		return
	}
	m.recorder.RecordLogin(LoginResultFailure)
}

func readCeremonyBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxCeremonyBody+1))
	if err != nil {
		return nil, errutil.Validation(CodeMalformedInput).Wrap(err)
	}
	if len(data) > maxCeremonyBody {
		return nil, errutil.Validation(CodeMalformedInput).Errorf("ceremony response too large")
	}
	return data, nil
}
