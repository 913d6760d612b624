// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"image/png"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// TOTP parameters. Authenticator apps assume SHA1, 30 seconds and 6 digits.
const (
	TOTPPeriod     = 30
	TOTPDigits     = 6
	TOTPSecretSize = 32
	TOTPSkew       = 1
	totpQRSize     = 256
)

// ReplayGuard remembers consumed one-time values.
type ReplayGuard interface {
	// Claim marks key as used for ttl. It returns false if key was already
	// claimed and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// TOTPProvisioning is what a client needs to enrol an authenticator app.
type TOTPProvisioning struct {
	Secret    string `json:"secret"`
	URL       string `json:"url"`
	QRCode    string `json:"qrcode"`
	Algorithm string `json:"hash"`
	Interval  int    `json:"interval"`
	Digits    int    `json:"digits"`
}

// TOTPEngine generates secrets and verifies codes. A code is accepted for the
// current step and one step either side, and at most once per step.
type TOTPEngine struct {
	issuer string
	replay ReplayGuard
	now    func() time.Time
}

// NewTOTPEngine creates an engine that labels secrets with issuer.
func NewTOTPEngine(issuer string, replay ReplayGuard) *TOTPEngine {
	return &TOTPEngine{issuer: issuer, replay: replay, now: time.Now}
}

// WithClock returns a copy of the engine that reads time from now.
func (e *TOTPEngine) WithClock(now func() time.Time) *TOTPEngine {
	clone := *e
	clone.now = now
	return &clone
}

// Generate creates a new secret for account with its otpauth URL and a
// base64 PNG QR code.
func (e *TOTPEngine) Generate(account string) (*TOTPProvisioning, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      TOTPPeriod,
		SecretSize:  TOTPSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, oops.Code("AUTH_TOTP_GENERATE_FAILED").With("account", account).Wrap(err)
	}

	img, err := key.Image(totpQRSize, totpQRSize)
	if err != nil {
		return nil, oops.Code("AUTH_TOTP_QR_FAILED").Wrap(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, oops.Code("AUTH_TOTP_QR_FAILED").Wrap(err)
	}

	return &TOTPProvisioning{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRCode:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		Algorithm: "SHA1",
		Interval:  TOTPPeriod,
		Digits:    TOTPDigits,
	}, nil
}

// Verify checks code against secret and consumes its time step for identity.
// A wrong code and a replayed code are both authentication failures.
func (e *TOTPEngine) Verify(ctx context.Context, identity, secret, code string) error {
	step, ok := e.match(secret, code)
	if !ok {
		return errutil.Authentication(CodeInvalidTOTP).Errorf("invalid one-time code")
	}

	ttl := time.Duration(2*TOTPSkew+1) * TOTPPeriod * time.Second
	claimed, err := e.replay.Claim(ctx, "totp:"+identity+":"+strconv.FormatInt(step, 10), ttl)
	if err != nil {
		return errutil.Transient(CodeStoreUnavailable).With("operation", "claim totp step").Wrap(err)
	}
	if !claimed {
		return errutil.Authentication(CodeTOTPReplayed).Errorf("one-time code already used")
	}
	return nil
}

// match returns the time step whose code equals code.
func (e *TOTPEngine) match(secret, code string) (int64, bool) {
	if len(code) != TOTPDigits || secret == "" {
		return 0, false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	now := e.now()
	current := now.Unix() / TOTPPeriod
	opts := totp.ValidateOpts{
		Period:    TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	matched, found := int64(0), false
	for offset := int64(-TOTPSkew); offset <= TOTPSkew; offset++ {
		at := time.Unix((current+offset)*TOTPPeriod, 0)
		expected, err := totp.GenerateCodeCustom(secret, at, opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 && !found {
			matched, found = current+offset, true
		}
	}
	return matched, found
}
