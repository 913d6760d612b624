// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package errutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

var fastPolicy = errutil.RetryPolicy{Base: time.Millisecond, MaxAttempts: 3}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := errutil.Retry(context.Background(), fastPolicy, func(context.Context) error {
		calls++
		if calls < 3 {
			return errutil.Transient("DB_UNAVAILABLE").Errorf("down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_DoesNotRetryTerminalErrors(t *testing.T) {
	calls := 0
	err := errutil.Retry(context.Background(), fastPolicy, func(context.Context) error {
		calls++
		return errutil.Conflict("USERNAME_TAKEN").Errorf("taken")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	errutil.AssertErrorCode(t, err, "USERNAME_TAKEN")
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := errutil.Retry(context.Background(), fastPolicy, func(context.Context) error {
		calls++
		return errutil.Transient("DB_UNAVAILABLE").Errorf("down")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	errutil.AssertErrorKind(t, err, errutil.KindTransient)
}

func TestRetryValue_ReturnsValue(t *testing.T) {
	v, err := errutil.RetryValue(context.Background(), fastPolicy, func(context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
