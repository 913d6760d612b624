// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package errutil

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds automatic retries of transient failures.
type RetryPolicy struct {
	Base        time.Duration
	MaxAttempts uint64
}

// DefaultRetryPolicy retries up to three times starting at 25ms.
var DefaultRetryPolicy = RetryPolicy{Base: 25 * time.Millisecond, MaxAttempts: 3}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(p.MaxAttempts, b)
}

// Retry runs fn and retries it while it fails with a transient error.
// Any other error is returned immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	//nolint:wrapcheck // errors from fn pass through unchanged
	return retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// RetryValue is Retry for functions that produce a value.
func RetryValue[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	//nolint:wrapcheck // errors from fn pass through unchanged
	return retry.DoValue(ctx, policy.backoff(), func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if IsRetryable(err) {
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}
