// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/labyrinth-game/labyrinth/internal/config"
	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/observability"
	"github.com/labyrinth-game/labyrinth/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the game API server",
		Long: `Start the REST API and, when metrics.addr is set, the metrics and
health listener. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, deps)
		},
	}
	cmd.Flags().String("http-addr", "", "API listen address")
	cmd.Flags().String("metrics-addr", "", "metrics/health listen address (empty = disabled)")
	cmd.Flags().Bool("auto-migrate", true, "apply pending PostgreSQL migrations on start")
	return cmd
}

// runServe wires every component and blocks until shutdown.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := setupLogging(cfg)
	logger.Info("starting labyrinth",
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Store.Backend,
		"ephemeral", cfg.Ephemeral.Backend,
		"mail", cfg.Mail.Backend,
		"media", cfg.Media.Backend,
	)

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingOptions{
		Service:     "labyrinth",
		Version:     version,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return oops.Code("TRACING_SETUP_FAILED").Wrap(err)
	}
	defer closeWithTimeout(logger, "tracing", cfg, shutdownTracing)

	backend, err := deps.BackendFactory(ctx, cfg, deps.MigratorFactory, logger)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("backend", cfg.Store.Backend).Wrap(err)
	}
	defer closeWithTimeout(logger, "store", cfg, backend.Close)

	eph := deps.EphemeralFactory(cfg)
	defer func() {
		if err := eph.Close(); err != nil {
			logger.Warn("error closing ephemeral store", "error", err)
		}
	}()

	ready := func(ctx context.Context) error {
		return errors.Join(backend.Ping(ctx), eph.Ping(ctx))
	}
	obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready, logger)
	metrics := obsServer.Metrics()

	mailer := openMailer(cfg, metrics, logger)
	defer closeWithTimeout(logger, "mailer", cfg, mailer.Close)

	resolver, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}

	engine, err := maze.NewEngine(maze.EngineDeps{
		Rooms:         backend.Rooms,
		Riddles:       backend.Riddles,
		Progress:      backend.Progress,
		Media:         resolver,
		Recorder:      metrics,
		Logger:        logger.With("component", "maze"),
		DefaultGameID: cfg.Game.DefaultGameID,
	})
	if err != nil {
		return err
	}

	mgr, sessions, err := newManager(cfg, accountDeps{
		backend:   backend,
		ephemeral: eph,
		mailer:    mailer,
		onboarder: engine,
		recorder:  metrics,
		logger:    logger.With("component", "auth"),
	})
	if err != nil {
		return err
	}

	handler, err := web.NewHandler(web.Deps{
		Accounts: mgr,
		Tokens:   sessions,
		Game:     engine,
		Limiter:  eph,
		Recorder: metrics,
		Logger:   logger.With("component", "http"),
	}, web.Options{
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiServer := deps.APIServerFactory(cfg, handler, logger)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("HTTP_START_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	if cfg.Metrics.Addr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			stopWithTimeout(logger, "api", cfg, apiServer.Stop)
			return oops.Code("METRICS_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Labyrinth listening on " + apiServer.Addr())
	logger.Info("labyrinth ready", "addr", apiServer.Addr(), "game_id", cfg.Game.DefaultGameID)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopWithTimeout(logger, "api", cfg, apiServer.Stop)
	if cfg.Metrics.Addr != "" {
		stopWithTimeout(logger, "observability", cfg, obsServer.Stop)
	}
	logger.Info("shutdown complete")
	return nil
}

func stopWithTimeout(logger *slog.Logger, name string, cfg *config.Config, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

func closeWithTimeout(logger *slog.Logger, name string, cfg *config.Config, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		logger.Warn("error closing", "component", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
