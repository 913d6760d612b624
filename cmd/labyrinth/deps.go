// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/config"
	"github.com/labyrinth-game/labyrinth/internal/observability"
	"github.com/labyrinth-game/labyrinth/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// BackendFactory opens the persistent store.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config, migrators MigratorFactory, logger *slog.Logger) (*Backend, error)

	// EphemeralFactory opens the challenge, replay and rate-limit store.
	// Default: openEphemeral
	EphemeralFactory func(cfg *config.Config) EphemeralStore

	// MigratorFactory opens a schema migrator for a PostgreSQL URL.
	// Default: store.NewMigrator
	MigratorFactory MigratorFactory

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// APIServerFactory creates the REST server.
	// Default: web.NewServer
	APIServerFactory func(cfg *config.Config, handler http.Handler, logger *slog.Logger) APIServer
}

// withDefaults fills nil factories.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.BackendFactory == nil {
		out.BackendFactory = openBackend
	}
	if out.EphemeralFactory == nil {
		out.EphemeralFactory = openEphemeral
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = newAPIServer
	}
	return &out
}

// MigratorFactory opens a migrator.
type MigratorFactory func(databaseURL string) (Migrator, error)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// EphemeralStore is what the auth layer needs from ephemeral state, plus
// health and shutdown.
type EphemeralStore interface {
	auth.ChallengeStore
	auth.ReplayGuard
	auth.AttemptLimiter
	Ping(ctx context.Context) error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// APIServer wraps the methods used from web.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

var _ Migrator = (*store.Migrator)(nil)
