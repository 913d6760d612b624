// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package errutil_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errutil.Kind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), errutil.KindInternal},
		{"untagged oops", oops.Code("X").Errorf("x"), errutil.KindInternal},
		{"validation", errutil.Validation("BAD").Errorf("bad"), errutil.KindValidation},
		{"authentication", errutil.Authentication("BAD").Errorf("bad"), errutil.KindAuthentication},
		{"authorization", errutil.Authorization("BAD").Errorf("bad"), errutil.KindAuthorization},
		{"not found", errutil.NotFound("BAD").Errorf("bad"), errutil.KindNotFound},
		{"conflict", errutil.Conflict("BAD").Errorf("bad"), errutil.KindConflict},
		{"rate limited", errutil.RateLimited("BAD").Errorf("bad"), errutil.KindRateLimited},
		{"transient", errutil.Transient("BAD").Errorf("bad"), errutil.KindTransient},
		{"deadline", context.DeadlineExceeded, errutil.KindTransient},
		{
			"outer kind wins",
			errutil.Authentication("LOGIN_FAILED").Wrap(errutil.NotFound("USER_NOT_FOUND").Errorf("missing")),
			errutil.KindAuthentication,
		},
		{
			"inner kind survives untagged wrap",
			oops.With("op", "solve").Wrap(errutil.Transient("DB").Errorf("down")),
			errutil.KindTransient,
		},
		{
			"fmt wrapped",
			fmt.Errorf("ctx: %w", errutil.Conflict("DUP").Errorf("dup")),
			errutil.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.KindOf(tt.err))
		})
	}
}

func TestIsRetryable_OnlyTransient(t *testing.T) {
	assert.True(t, errutil.IsRetryable(errutil.Transient("DB").Errorf("down")))
	assert.False(t, errutil.IsRetryable(errutil.Conflict("DUP").Errorf("dup")))
	assert.False(t, errutil.IsRetryable(errors.New("plain")))
	assert.False(t, errutil.IsRetryable(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "USER_NOT_FOUND", errutil.CodeOf(errutil.NotFound("USER_NOT_FOUND").Errorf("x")))
	assert.Equal(t, "", errutil.CodeOf(errors.New("plain")))
}
