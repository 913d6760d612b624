// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package ephemeral

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// CodeUnavailable tags failures talking to the shared store. They are transient.
const CodeUnavailable = "EPHEMERAL_UNAVAILABLE"

// DefaultKeyPrefix namespaces every key written to Redis.
const DefaultKeyPrefix = "labyrinth:"

// incrWindow increments a counter and starts its expiry on the first hit.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis keeps ephemeral state in Redis so every node sees the same
// challenges, claims and counters.
type Redis struct {
	client redis.UniversalClient
	prefix string
	limits Limits
}

// NewRedis connects a client for opts.
func NewRedis(opts RedisOptions, limits Limits) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(client, opts.Prefix, limits)
}

// NewRedisWithClient wraps an existing client. An empty prefix uses DefaultKeyPrefix.
func NewRedisWithClient(client redis.UniversalClient, prefix string, limits Limits) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, limits: limits}
}

// Put stores value under key for ttl.
func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+"c:"+key, value, ttl).Err(); err != nil {
		return unavailable("put", key, err)
	}
	return nil
}

// Take atomically reads and deletes the value under key.
func (r *Redis) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.GetDel(ctx, r.prefix+"c:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("take", key, err)
	}
	return value, true, nil
}

// Claim sets key only if absent. It returns false while an earlier claim is live.
func (r *Redis) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+"r:"+key, 1, ttl).Result()
	if err != nil {
		return false, unavailable("claim", key, err)
	}
	return ok, nil
}

// Allow increments the counter for key, starting its window on the first
// attempt, and reports whether it is within the limit.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	limit := r.limits.forKey(key)
	k := r.prefix + "a:" + key

	count, err := incrWindow.Run(ctx, r.client, []string{k}, limit.Window.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable("allow", key, err)
	}
	return count <= limit.Max, nil
}

// Reset deletes the counter for key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+"a:"+key).Err(); err != nil {
		return unavailable("reset", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	//nolint:wrapcheck // shutdown path
	return r.client.Close()
}

func unavailable(op, key string, err error) error {
	return errutil.Transient(CodeUnavailable).With("operation", op).With("key", key).Wrap(err)
}
