// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package ephemeral_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/ephemeral"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *ephemeral.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, ephemeral.NewRedisWithClient(client, "", ephemeral.DefaultLimits())
}

func TestRedis_TakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	require.NoError(t, store.Put(ctx, "webauthn:login:alice", []byte(`{"c":1}`), 2*time.Minute))
	assert.True(t, mr.Exists(ephemeral.DefaultKeyPrefix+"c:webauthn:login:alice"))

	v, found, err := store.Take(ctx, "webauthn:login:alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"c":1}`, string(v))

	_, found, err = store.Take(ctx, "webauthn:login:alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_TakeExpired(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(time.Minute + time.Second)

	_, found, err := store.Take(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_Claim(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	ok, err := store.Claim(ctx, "totp:alice:123", 90*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "totp:alice:123", 90*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(91 * time.Second)
	ok, err = store.Claim(ctx, "totp:alice:123", 90*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_Allow(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	for i := range 5 {
		ok, err := store.Allow(ctx, "activate:alice")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, err := store.Allow(ctx, "activate:alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl := mr.TTL(ephemeral.DefaultKeyPrefix + "a:activate:alice")
	assert.Positive(t, ttl)
	assert.LessOrEqual(t, ttl, 15*time.Minute)

	require.NoError(t, store.Reset(ctx, "activate:alice"))
	ok, err = store.Allow(ctx, "activate:alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_UnavailableIsTransient(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)
	mr.Close()

	_, _, err := store.Take(ctx, "k")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, ephemeral.CodeUnavailable)
	assert.True(t, errutil.IsRetryable(err))

	assert.Error(t, store.Ping(ctx))
}
