// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"context"
	"time"
)

// LockoutPolicy locks an account after repeated password failures.
type LockoutPolicy struct {
	// Threshold is the number of consecutive failures that triggers a lockout.
	Threshold int
	// Duration is how long the account stays locked.
	Duration time.Duration
}

// DefaultLockoutPolicy locks for 15 minutes after 7 failures.
var DefaultLockoutPolicy = LockoutPolicy{Threshold: 7, Duration: 15 * time.Minute}

// LockoutTime returns the lockout expiry for the given failure count, or nil
// while the count is below the threshold.
func (p LockoutPolicy) LockoutTime(failures int, now time.Time) *time.Time {
	if failures < p.Threshold {
		return nil
	}
	until := now.Add(p.Duration)
	return &until
}

// Remaining returns how long lockedUntil still applies, or zero.
func (p LockoutPolicy) Remaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if lockedUntil == nil || !lockedUntil.After(now) {
		return 0
	}
	return lockedUntil.Sub(now)
}

// AttemptLimiter throttles guessable operations (activation PINs, TOTP codes,
// anonymous requests per client address) by key.
type AttemptLimiter interface {
	// Allow records an attempt for key and reports whether it is within the
	// limit for the current window.
	Allow(ctx context.Context, key string) (bool, error)

	// Reset clears the attempts recorded for key.
	Reset(ctx context.Context, key string) error
}

// Attempt limiter key prefixes.
const (
	limiterKeyActivation = "activate:"
	limiterKeyTOTP       = "totp:"
	limiterKeyRecovery   = "recover:"
)
