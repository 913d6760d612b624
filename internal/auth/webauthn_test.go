// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/ephemeral"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

type fakeProvider struct {
	creationOpts  protocol.PublicKeyCredentialCreationOptions
	loginUser     webauthn.User
	created       *webauthn.Credential
	createErr     error
	validateErr   error
	validateCalls int
}

func (f *fakeProvider) BeginRegistration(_ webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	for _, o := range opts {
		o(&f.creationOpts)
	}
	return &protocol.CredentialCreation{Response: f.creationOpts}, &webauthn.SessionData{Challenge: "register"}, nil
}

func (f *fakeProvider) CreateCredential(_ webauthn.User, session webauthn.SessionData, _ *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	if session.Challenge != "register" {
		return nil, errors.New("wrong session")
	}
	return f.created, f.createErr
}

func (f *fakeProvider) BeginLogin(user webauthn.User, _ ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	f.loginUser = user
	return &protocol.CredentialAssertion{}, &webauthn.SessionData{Challenge: "login"}, nil
}

func (f *fakeProvider) ValidateLogin(_ webauthn.User, session webauthn.SessionData, _ *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	f.validateCalls++
	if session.Challenge != "login" {
		return nil, errors.New("wrong session")
	}
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &webauthn.Credential{}, nil
}

type fakeParser struct {
	rawID   []byte
	counter uint32
	err     error
}

func (f *fakeParser) ParseCredentialCreationResponseBytes([]byte) (*protocol.ParsedCredentialCreationData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.ParsedCredentialCreationData{}, nil
}

func (f *fakeParser) ParseCredentialRequestResponseBytes([]byte) (*protocol.ParsedCredentialAssertionData, error) {
	if f.err != nil {
		return nil, f.err
	}
	data := &protocol.ParsedCredentialAssertionData{}
	data.RawID = f.rawID
	data.Response.AuthenticatorData.Counter = f.counter
	return data, nil
}

func userWithCredential(count uint32) *User {
	u, _ := NewUser("alice", "alice@example.com", "hash", time.Now())
	u.WebAuthnCredentials = []WebAuthnCredential{{ID: []byte("cred-1"), PublicKey: []byte("pk"), SignCount: count}}
	return u
}

func newTestCeremony(provider *fakeProvider, parser *fakeParser) *WebAuthnCeremony {
	return newWebAuthnCeremony(provider, parser, ephemeral.NewMemory(ephemeral.DefaultLimits()), time.Minute)
}

func TestNewWebAuthnCeremony(t *testing.T) {
	c, err := NewWebAuthnCeremony(WebAuthnConfig{
		RPID:          "localhost",
		RPDisplayName: "Labyrinth",
		RPOrigins:     []string{"http://localhost:8080"},
		ChallengeTTL:  2 * time.Minute,
	}, ephemeral.NewMemory(ephemeral.DefaultLimits()))
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewWebAuthnCeremony(WebAuthnConfig{}, ephemeral.NewMemory(ephemeral.DefaultLimits()))
	assert.Error(t, err)
}

func TestWebAuthnCeremony_FinishLogin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		stored     uint32
		asserted   uint32
		wantCloned bool
	}{
		{name: "increasing counter accepted", stored: 5, asserted: 6},
		{name: "equal counter rejected", stored: 5, asserted: 5, wantCloned: true},
		{name: "lower counter rejected", stored: 5, asserted: 3, wantCloned: true},
		{name: "zero counters rejected", stored: 0, asserted: 0, wantCloned: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			c := newTestCeremony(provider, &fakeParser{rawID: []byte("cred-1"), counter: tt.asserted})
			user := userWithCredential(tt.stored)

			_, err := c.BeginLogin(ctx, user)
			require.NoError(t, err)

			result, err := c.FinishLogin(ctx, user, []byte("{}"))
			if tt.wantCloned {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, CodeClonedAuthenticator)
				errutil.AssertErrorKind(t, err, errutil.KindAuthentication)
				require.NotNil(t, result)
				assert.True(t, result.Cloned)
				return
			}
			require.NoError(t, err)
			assert.False(t, result.Cloned)
			assert.Equal(t, tt.asserted, result.SignCount)
			assert.Equal(t, []byte("cred-1"), result.CredentialID)
		})
	}
}

func TestWebAuthnCeremony_FinishLoginChallengeSingleUse(t *testing.T) {
	ctx := context.Background()
	c := newTestCeremony(&fakeProvider{}, &fakeParser{rawID: []byte("cred-1"), counter: 7})
	user := userWithCredential(1)

	_, err := c.BeginLogin(ctx, user)
	require.NoError(t, err)
	_, err = c.FinishLogin(ctx, user, []byte("{}"))
	require.NoError(t, err)

	_, err = c.FinishLogin(ctx, user, []byte("{}"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeChallengeExpired)
}

func TestWebAuthnCeremony_FinishLoginBadSignatureDoesNotFlagClone(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{validateErr: errors.New("signature mismatch")}
	c := newTestCeremony(provider, &fakeParser{rawID: []byte("cred-1"), counter: 0})
	user := userWithCredential(9)

	_, err := c.BeginLogin(ctx, user)
	require.NoError(t, err)

	result, err := c.FinishLogin(ctx, user, []byte("{}"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeWebAuthnFailed)
	assert.Nil(t, result)
}

func TestWebAuthnCeremony_DisabledCredential(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	c := newTestCeremony(provider, &fakeParser{rawID: []byte("cred-1"), counter: 10})
	user := userWithCredential(1)
	user.WebAuthnCredentials = append(user.WebAuthnCredentials, WebAuthnCredential{ID: []byte("cred-2"), SignCount: 1})

	_, err := c.BeginLogin(ctx, user)
	require.NoError(t, err)
	assert.Len(t, provider.loginUser.WebAuthnCredentials(), 2)

	user.WebAuthnCredentials[0].Disabled = true
	_, err = c.FinishLogin(ctx, user, []byte("{}"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeWebAuthnFailed)
	assert.Zero(t, provider.validateCalls)
}

func TestWebAuthnCeremony_BeginLoginWithoutCredentials(t *testing.T) {
	c := newTestCeremony(&fakeProvider{}, &fakeParser{})
	user, _ := NewUser("bob", "bob@example.com", "hash", time.Now())

	_, err := c.BeginLogin(context.Background(), user)
	require.Error(t, err)
	errutil.AssertErrorKind(t, err, errutil.KindAuthentication)
}

func TestWebAuthnCeremony_Registration(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{created: &webauthn.Credential{
		ID:        []byte("cred-new"),
		PublicKey: []byte("pk"),
		Transport: []protocol.AuthenticatorTransport{protocol.USB},
		Flags:     webauthn.CredentialFlags{UserPresent: true, BackupEligible: true},
		Authenticator: webauthn.Authenticator{
			AAGUID:    []byte("aaguid"),
			SignCount: 3,
		},
	}}
	c := newTestCeremony(provider, &fakeParser{})
	user := userWithCredential(1)
	user.WebAuthnCredentials[0].Disabled = true

	_, err := c.BeginRegistration(ctx, user)
	require.NoError(t, err)
	require.Len(t, provider.creationOpts.CredentialExcludeList, 1, "disabled credentials stay excluded")
	assert.Equal(t, protocol.URLEncodedBase64("cred-1"), provider.creationOpts.CredentialExcludeList[0].CredentialID)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cred, err := c.FinishRegistration(ctx, user, []byte("{}"), now)
	require.NoError(t, err)
	assert.Equal(t, []byte("cred-new"), cred.ID)
	assert.Equal(t, uint32(3), cred.SignCount)
	assert.Equal(t, []string{"usb"}, cred.Transports)
	assert.True(t, cred.Flags.BackupEligible)
	assert.Equal(t, now, cred.CreatedAt)

	_, err = c.FinishRegistration(ctx, user, []byte("{}"), now)
	errutil.AssertErrorCode(t, err, CodeChallengeExpired)
}

func TestWebAuthnCeremony_MalformedResponse(t *testing.T) {
	ctx := context.Background()
	c := newTestCeremony(&fakeProvider{}, &fakeParser{err: errors.New("bad json")})
	user := userWithCredential(1)

	_, err := c.BeginLogin(ctx, user)
	require.NoError(t, err)
	_, err = c.FinishLogin(ctx, user, []byte("nope"))
	require.Error(t, err)
	errutil.AssertErrorKind(t, err, errutil.KindValidation)
}

func TestCredentialConversionRoundTrip(t *testing.T) {
	stored := WebAuthnCredential{
		ID:              []byte("id"),
		PublicKey:       []byte("pk"),
		AttestationType: "none",
		Transports:      []string{"usb", "nfc"},
		Flags:           CredentialFlags{UserPresent: true, UserVerified: true, BackupEligible: true, BackupState: true},
		AAGUID:          []byte("aaguid"),
		SignCount:       42,
		Attachment:      "cross-platform",
	}
	now := time.Now()
	converted := toWebAuthnCredential(stored)
	back := fromWebAuthnCredential(&converted, now)
	stored.CreatedAt = now
	assert.Equal(t, stored, back)
}
