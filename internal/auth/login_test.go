// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

func TestManager_LoginWithoutSecondFactor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")

	res, err := h.mgr.Login(ctx, "alice", "correct horse battery", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Empty(t, res.SecondFactors)
	require.NotNil(t, res.User.LastLogin)
	assert.Equal(t, h.now, *res.User.LastLogin)
}

func TestManager_LoginFailuresAreGeneric(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")

	_, errWrong := h.mgr.Login(ctx, "alice", "wrong password", "")
	_, errUnknown := h.mgr.Login(ctx, "nobody", "wrong password", "")

	errutil.AssertErrorCode(t, errWrong, auth.CodeInvalidCredentials)
	errutil.AssertErrorKind(t, errWrong, errutil.KindAuthentication)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.Equal(t, errutil.CodeOf(errWrong), errutil.CodeOf(errUnknown))
}

func TestManager_LoginRequiresActivation(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "correct horse battery")

	_, err := h.mgr.Login(context.Background(), "alice", "correct horse battery", "")
	errutil.AssertErrorCode(t, err, auth.CodeNotActivated)
}

func TestManager_LoginLockout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")

	for range auth.DefaultLockoutPolicy.Threshold {
		_, err := h.mgr.Login(ctx, "alice", "wrong password", "")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	}

	_, errRight := h.mgr.Login(ctx, "alice", "correct horse battery", "")
	_, errWrong := h.mgr.Login(ctx, "alice", "another wrong password", "")
	for _, err := range []error{errRight, errWrong} {
		errutil.AssertErrorCode(t, err, auth.CodeAccountLocked)
		errutil.AssertErrorKind(t, err, errutil.KindRateLimited)
	}
	assert.Equal(t, errRight.Error(), errWrong.Error(), "a locked account does not reveal whether the password was right")

	locked, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultLockoutPolicy.Threshold, locked.FailedAttempts, "attempts while locked are not counted")

	h.now = h.now.Add(auth.DefaultLockoutPolicy.Duration + time.Second)
	res, err := h.mgr.Login(ctx, "alice", "correct horse battery", "")
	require.NoError(t, err)
	assert.Zero(t, res.User.FailedAttempts)
}

func enableTOTP(t *testing.T, h *harness, username string) {
	t.Helper()
	ctx := context.Background()
	prov, err := h.mgr.EnableTOTPStart(ctx, username)
	require.NoError(t, err)
	require.NoError(t, h.mgr.EnableTOTPConfirm(ctx, username, codeAt(t, prov.Secret, h.now)))
	// Move to a fresh step so the enrolment code is not replayed by the next login.
	h.now = h.now.Add(2 * auth.TOTPPeriod * time.Second)
}

func TestManager_LoginWithTOTP(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")
	enableTOTP(t, h, "alice")
	user, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	secret := user.TOTPSecret

	t.Run("password alone asks for the second factor", func(t *testing.T) {
		res, err := h.mgr.Login(ctx, "alice", "correct horse battery", "")
		require.NoError(t, err)
		assert.Empty(t, res.Token)
		assert.Equal(t, []auth.SecondFactor{auth.SecondFactorTOTP}, res.SecondFactors)
	})

	t.Run("second step completes the login", func(t *testing.T) {
		res, err := h.mgr.LoginTOTP(ctx, "alice", codeAt(t, secret, h.now))
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("the same code cannot be used again", func(t *testing.T) {
		_, err := h.mgr.Login(ctx, "alice", "correct horse battery", "")
		require.NoError(t, err)
		_, err = h.mgr.LoginTOTP(ctx, "alice", codeAt(t, secret, h.now))
		errutil.AssertErrorCode(t, err, auth.CodeTOTPReplayed)
	})

	t.Run("code inline with the password", func(t *testing.T) {
		h.now = h.now.Add(2 * auth.TOTPPeriod * time.Second)
		res, err := h.mgr.Login(ctx, "alice", "correct horse battery", codeAt(t, secret, h.now))
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("second step without a pending password step", func(t *testing.T) {
		h.now = h.now.Add(2 * auth.TOTPPeriod * time.Second)
		_, err := h.mgr.LoginTOTP(ctx, "alice", codeAt(t, secret, h.now))
		errutil.AssertErrorCode(t, err, auth.CodeSecondFactorRequired)
	})

	t.Run("pending window expires", func(t *testing.T) {
		_, err := h.mgr.Login(ctx, "alice", "correct horse battery", "")
		require.NoError(t, err)
		h.now = h.now.Add(auth.DefaultSecondFactorWindow + time.Second)
		_, err = h.mgr.LoginTOTP(ctx, "alice", codeAt(t, secret, h.now))
		errutil.AssertErrorCode(t, err, auth.CodeSecondFactorRequired)
	})
}

func TestManager_EnableTOTP(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")

	prov, err := h.mgr.EnableTOTPStart(ctx, "alice")
	require.NoError(t, err)

	stored, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, stored.TOTPSecret, "secret is not committed before confirmation")

	good := codeAt(t, prov.Secret, h.now)
	err = h.mgr.EnableTOTPConfirm(ctx, "alice", mistype(good))
	errutil.AssertErrorKind(t, err, errutil.KindAuthentication)

	stored, err = h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, stored.TOTPSecret, "a rejected code commits nothing")

	require.NoError(t, h.mgr.EnableTOTPConfirm(ctx, "alice", good), "the pending secret survives a typo")

	err = h.mgr.EnableTOTPConfirm(ctx, "alice", good)
	errutil.AssertErrorCode(t, err, auth.CodeChallengeExpired)

	h.now = h.now.Add(2 * auth.TOTPPeriod * time.Second)
	_, err = h.mgr.EnableTOTPStart(ctx, "alice")
	errutil.AssertErrorCode(t, err, auth.CodeTOTPAlreadyEnabled)

	stored, err = h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.TOTPSecret)
}

func TestManager_DisableTOTP(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")

	err := h.mgr.DisableTOTP(ctx, "alice", "123456")
	errutil.AssertErrorCode(t, err, auth.CodeTOTPNotEnabled)

	enableTOTP(t, h, "alice")
	stored, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, h.mgr.DisableTOTP(ctx, "alice", codeAt(t, stored.TOTPSecret, h.now)))

	res, err := h.mgr.Login(ctx, "alice", "correct horse battery", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestManager_LoginWithWebAuthnCredential(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register("alice", "correct horse battery")
	h.activate("alice")
	_, err := h.users.Update(ctx, "alice", func(u *auth.User) error {
		u.WebAuthnCredentials = []auth.WebAuthnCredential{{ID: []byte("cred-1"), PublicKey: []byte("pk"), SignCount: 4}}
		return nil
	})
	require.NoError(t, err)

	_, err = h.mgr.LoginWebAuthnStart(ctx, "alice")
	errutil.AssertErrorCode(t, err, auth.CodeSecondFactorRequired)

	res, err := h.mgr.Login(ctx, "alice", "correct horse battery", "123456")
	require.NoError(t, err)
	assert.Empty(t, res.Token, "a TOTP code never bypasses a registered authenticator")
	assert.Equal(t, []auth.SecondFactor{auth.SecondFactorFIDO2}, res.SecondFactors)

	assertion, err := h.mgr.LoginWebAuthnStart(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, assertion.Response.AllowedCredentials, 1)
	assert.Equal(t, []byte("cred-1"), []byte(assertion.Response.AllowedCredentials[0].CredentialID))

	_, err = h.mgr.LoginWebAuthnFinish(ctx, "alice", strings.NewReader("{not json"))
	errutil.AssertErrorKind(t, err, errutil.KindValidation)

	_, err = h.mgr.LoginWebAuthnFinish(ctx, "alice", strings.NewReader("{}"))
	errutil.AssertErrorCode(t, err, auth.CodeChallengeExpired)
}

func TestManager_CeremonyBodyTooLarge(t *testing.T) {
	h := newHarness(t)
	big := strings.NewReader(strings.Repeat("x", 64<<10+1))
	_, err := h.mgr.LoginWebAuthnFinish(context.Background(), "alice", big)
	errutil.AssertErrorKind(t, err, errutil.KindValidation)
}
