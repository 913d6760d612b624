// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// WebAuthnConfig identifies the relying party.
type WebAuthnConfig struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
	ChallengeTTL  time.Duration
}

type webAuthnProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

type webAuthnParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	//nolint:wrapcheck // classified by caller
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	//nolint:wrapcheck // classified by caller
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// AssertionResult describes a verified login assertion.
type AssertionResult struct {
	CredentialID []byte
	// SignCount is the counter presented by the authenticator.
	SignCount uint32
	// Cloned is set when the counter did not increase. The assertion is
	// rejected and the credential must be disabled.
	Cloned bool
}

// WebAuthnCeremony runs FIDO2 registration and login ceremonies. Each begin
// step stores a single-use challenge that the matching finish step consumes.
type WebAuthnCeremony struct {
	provider   webAuthnProvider
	parser     webAuthnParser
	challenges ChallengeStore
	ttl        time.Duration
}

// NewWebAuthnCeremony creates a ceremony for the given relying party.
func NewWebAuthnCeremony(cfg WebAuthnConfig, challenges ChallengeStore) (*WebAuthnCeremony, error) {
	timeout := webauthn.TimeoutConfig{Enforce: true, Timeout: cfg.ChallengeTTL, TimeoutUVD: cfg.ChallengeTTL}
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        timeout,
			Registration: timeout,
		},
	})
	if err != nil {
		return nil, oops.Code("AUTH_WEBAUTHN_CONFIG").With("rp_id", cfg.RPID).Wrap(err)
	}
	return newWebAuthnCeremony(wa, protocolParser{}, challenges, cfg.ChallengeTTL), nil
}

func newWebAuthnCeremony(provider webAuthnProvider, parser webAuthnParser, challenges ChallengeStore, ttl time.Duration) *WebAuthnCeremony {
	return &WebAuthnCeremony{provider: provider, parser: parser, challenges: challenges, ttl: ttl}
}

// BeginRegistration issues creation options that exclude every credential
// the user already registered, disabled ones included.
func (c *WebAuthnCeremony) BeginRegistration(ctx context.Context, user *User) (*protocol.CredentialCreation, error) {
	wu := newWebAuthnUser(user, user.WebAuthnCredentials)
	exclusions := webauthn.Credentials(wu.credentials).CredentialDescriptors()

	creation, session, err := c.provider.BeginRegistration(wu, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, errutil.Authentication(CodeWebAuthnFailed).With("username", user.Username).Wrap(err)
	}
	if err := putChallenge(ctx, c.challenges, challengeWebAuthnRegister+user.Username, session, c.ttl); err != nil {
		return nil, err
	}
	return creation, nil
}

// FinishRegistration verifies the attestation in body against the pending
// challenge and returns the new credential. It does not persist anything.
func (c *WebAuthnCeremony) FinishRegistration(ctx context.Context, user *User, body []byte, now time.Time) (*WebAuthnCredential, error) {
	var session webauthn.SessionData
	if err := takeChallenge(ctx, c.challenges, challengeWebAuthnRegister+user.Username, &session); err != nil {
		return nil, err
	}

	parsed, err := c.parser.ParseCredentialCreationResponseBytes(body)
	if err != nil {
		return nil, errutil.Validation(CodeMalformedInput).Wrapf(err, "malformed attestation")
	}

	wu := newWebAuthnUser(user, user.WebAuthnCredentials)
	credential, err := c.provider.CreateCredential(wu, session, parsed)
	if err != nil {
		return nil, errutil.Authentication(CodeWebAuthnFailed).With("username", user.Username).Wrap(err)
	}

	stored := fromWebAuthnCredential(credential, now)
	return &stored, nil
}

// BeginLogin issues an assertion challenge bound to the user's active credentials.
func (c *WebAuthnCeremony) BeginLogin(ctx context.Context, user *User) (*protocol.CredentialAssertion, error) {
	active := user.ActiveCredentials()
	if len(active) == 0 {
		return nil, errutil.Authentication(CodeWebAuthnFailed).Errorf("no usable credentials")
	}

	assertion, session, err := c.provider.BeginLogin(newWebAuthnUser(user, active))
	if err != nil {
		return nil, errutil.Authentication(CodeWebAuthnFailed).With("username", user.Username).Wrap(err)
	}
	if err := putChallenge(ctx, c.challenges, challengeWebAuthnLogin+user.Username, session, c.ttl); err != nil {
		return nil, err
	}
	return assertion, nil
}

// FinishLogin verifies the assertion in body. The signature counter must be
// strictly greater than the stored one; otherwise the result has Cloned set
// and an authentication error is returned alongside it.
func (c *WebAuthnCeremony) FinishLogin(ctx context.Context, user *User, body []byte) (*AssertionResult, error) {
	var session webauthn.SessionData
	if err := takeChallenge(ctx, c.challenges, challengeWebAuthnLogin+user.Username, &session); err != nil {
		return nil, err
	}

	parsed, err := c.parser.ParseCredentialRequestResponseBytes(body)
	if err != nil {
		return nil, errutil.Validation(CodeMalformedInput).Wrapf(err, "malformed assertion")
	}

	stored := user.Credential(parsed.RawID)
	if stored == nil || stored.Disabled {
		return nil, errutil.Authentication(CodeWebAuthnFailed).Errorf("unknown or disabled credential")
	}

	if _, err := c.provider.ValidateLogin(newWebAuthnUser(user, user.ActiveCredentials()), session, parsed); err != nil {
		return nil, errutil.Authentication(CodeWebAuthnFailed).With("username", user.Username).Wrap(err)
	}

	result := &AssertionResult{
		CredentialID: stored.ID,
		SignCount:    parsed.Response.AuthenticatorData.Counter,
	}
	if result.SignCount <= stored.SignCount {
		result.Cloned = true
		return result, errutil.Authentication(CodeClonedAuthenticator).
			With("username", user.Username).
			With("stored_count", stored.SignCount).
			With("asserted_count", result.SignCount).
			Errorf("authenticator signature counter did not increase")
	}
	return result, nil
}

// webAuthnUser adapts User to webauthn.User.
type webAuthnUser struct {
	user        *User
	credentials []webauthn.Credential
}

func newWebAuthnUser(user *User, creds []WebAuthnCredential) *webAuthnUser {
	converted := make([]webauthn.Credential, 0, len(creds))
	for _, c := range creds {
		converted = append(converted, toWebAuthnCredential(c))
	}
	return &webAuthnUser{user: user, credentials: converted}
}

func (u *webAuthnUser) WebAuthnID() []byte                         { return u.user.ID.Bytes() }
func (u *webAuthnUser) WebAuthnName() string                       { return u.user.Username }
func (u *webAuthnUser) WebAuthnDisplayName() string                { return u.user.Username }
func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func toWebAuthnCredential(c WebAuthnCredential) webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:     c.AAGUID,
			SignCount:  c.SignCount,
			Attachment: protocol.AuthenticatorAttachment(c.Attachment),
		},
	}
}

func fromWebAuthnCredential(c *webauthn.Credential, now time.Time) WebAuthnCredential {
	transports := make([]string, 0, len(c.Transport))
	for _, t := range c.Transport {
		transports = append(transports, string(t))
	}
	return WebAuthnCredential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transports:      transports,
		Flags: CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		AAGUID:     c.Authenticator.AAGUID,
		SignCount:  c.Authenticator.SignCount,
		Attachment: string(c.Authenticator.Attachment),
		CreatedAt:  now,
	}
}
