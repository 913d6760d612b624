// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Claims are the session token claims: subject, role, issued-at and expiry.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Username returns the subject of the session.
func (c *Claims) Username() string {
	return c.Subject
}

// SessionIssuer mints and verifies stateless HS512 session tokens. Any node
// holding the secret can verify a token independently.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates an issuer. The secret must be non-empty and ttl positive.
func NewSessionIssuer(secret []byte, issuer string, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("AUTH_SESSION_CONFIG").Errorf("session secret cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_SESSION_CONFIG").Errorf("session ttl must be positive")
	}
	return &SessionIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	clone := *s
	clone.now = now
	return &clone
}

// Issue signs a token for username with role.
func (s *SessionIssuer) Issue(username string, role Role) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, oops.Code("AUTH_SESSION_SIGN_FAILED").With("username", username).Wrap(err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm, issuer and expiry. Every defect yields
// the same authentication error as a missing token.
func (s *SessionIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errInvalidSession()
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, errInvalidSession()
	}
	return claims, nil
}
