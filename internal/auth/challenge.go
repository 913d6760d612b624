// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// ChallengeStore holds short-lived ceremony state between two requests.
type ChallengeStore interface {
	// Put stores value under key, replacing any previous value, for ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take returns and deletes the value under key. found is false when the
	// key is absent or expired. A value can be taken at most once.
	Take(ctx context.Context, key string) (value []byte, found bool, err error)
}

// Challenge key prefixes.
const (
	challengeWebAuthnRegister = "webauthn:register:"
	challengeWebAuthnLogin    = "webauthn:login:"
	challengeTOTPEnrol        = "totp:enrol:"
)

func putChallenge(ctx context.Context, store ChallengeStore, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return oops.Code(CodeInternal).With("key", key).Wrap(err)
	}
	if err := store.Put(ctx, key, data, ttl); err != nil {
		return errutil.Transient(CodeStoreUnavailable).With("operation", "store challenge").Wrap(err)
	}
	return nil
}

// takeChallenge consumes the challenge under key into v. A missing or expired
// challenge is an authentication failure.
func takeChallenge(ctx context.Context, store ChallengeStore, key string, v any) error {
	data, found, err := store.Take(ctx, key)
	if err != nil {
		return errutil.Transient(CodeStoreUnavailable).With("operation", "take challenge").Wrap(err)
	}
	if !found {
		return errutil.Authentication(CodeChallengeExpired).Errorf("challenge expired or already used")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return oops.Code(CodeInternal).With("key", key).Wrap(err)
	}
	return nil
}
