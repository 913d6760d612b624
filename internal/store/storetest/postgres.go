// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package storetest starts disposable databases for integration tests.
package storetest

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/labyrinth-game/labyrinth/internal/store"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Postgres is a migrated PostgreSQL container.
type Postgres struct {
	URL       string
	Pool      *pgxpool.Pool
	container *postgres.PostgresContainer
}

// StartPostgres runs postgres:16-alpine, applies every migration and opens
// a pool.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("labyrinth_test"),
		postgres.WithUsername("labyrinth"),
		postgres.WithPassword("labyrinth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, oops.With("operation", "start postgres container").Wrap(err)
	}
	pg := &Postgres{container: container}

	pg.URL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pg.Terminate(ctx)
		return nil, oops.With("operation", "get connection string").Wrap(err)
	}

	migrator, err := store.NewMigrator(pg.URL)
	if err != nil {
		pg.Terminate(ctx)
		return nil, err
	}
	defer migrator.Close() //nolint:errcheck // test setup
	if err := migrator.Up(); err != nil {
		pg.Terminate(ctx)
		return nil, err
	}

	pg.Pool, err = store.Connect(ctx, pg.URL, errutil.DefaultRetryPolicy, slog.Default())
	if err != nil {
		pg.Terminate(ctx)
		return nil, err
	}
	return pg, nil
}

// Terminate closes the pool and removes the container.
func (p *Postgres) Terminate(ctx context.Context) {
	if p.Pool != nil {
		p.Pool.Close()
	}
	_ = p.container.Terminate(ctx) //nolint:errcheck // test teardown
}
