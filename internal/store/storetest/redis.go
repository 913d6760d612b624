// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package storetest

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Redis is a disposable Redis container.
type Redis struct {
	Client    *redis.Client
	container *tcredis.RedisContainer
}

// StartRedis runs redis:7-alpine and connects a client.
func StartRedis(ctx context.Context) (*Redis, error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, oops.With("operation", "start redis container").Wrap(err)
	}
	r := &Redis{container: container}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		r.Terminate(ctx)
		return nil, oops.With("operation", "get connection string").Wrap(err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		r.Terminate(ctx)
		return nil, oops.With("uri", uri).Wrap(err)
	}
	r.Client = redis.NewClient(opts)
	if err := r.Client.Ping(ctx).Err(); err != nil {
		r.Terminate(ctx)
		return nil, oops.With("operation", "ping redis").Wrap(err)
	}
	return r, nil
}

// Terminate closes the client and removes the container.
func (r *Redis) Terminate(ctx context.Context) {
	if r.Client != nil {
		_ = r.Client.Close() //nolint:errcheck // test teardown
	}
	_ = r.container.Terminate(ctx) //nolint:errcheck // test teardown
}
