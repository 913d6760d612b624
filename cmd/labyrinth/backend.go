// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	authpg "github.com/labyrinth-game/labyrinth/internal/auth/postgres"
	"github.com/labyrinth-game/labyrinth/internal/config"
	"github.com/labyrinth-game/labyrinth/internal/ephemeral"
	"github.com/labyrinth-game/labyrinth/internal/mail"
	"github.com/labyrinth-game/labyrinth/internal/maze"
	mazepg "github.com/labyrinth-game/labyrinth/internal/maze/postgres"
	"github.com/labyrinth-game/labyrinth/internal/media"
	"github.com/labyrinth-game/labyrinth/internal/store"
	"github.com/labyrinth-game/labyrinth/internal/store/mongostore"
	"github.com/labyrinth-game/labyrinth/internal/web"
	"github.com/labyrinth-game/labyrinth/internal/xdg"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// connectPolicy waits roughly half a minute for a database to come up.
var connectPolicy = errutil.RetryPolicy{Base: 250 * time.Millisecond, MaxAttempts: 8}

// Backend bundles the repositories of one persistent store.
type Backend struct {
	Users    auth.UserRepository
	Rooms    maze.RoomRepository
	Riddles  maze.RiddleRepository
	Progress maze.ProgressRepository
	Games    maze.GameWriter
	Ping     func(ctx context.Context) error
	Close    func(ctx context.Context) error
}

// openBackend connects to the configured store. PostgreSQL is migrated
// first when auto-migrate is on.
func openBackend(ctx context.Context, cfg *config.Config, migrators MigratorFactory, logger *slog.Logger) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		if cfg.Store.AutoMigrate {
			if err := migrateUp(migrators, cfg.Store.PostgresURL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := store.Connect(ctx, cfg.Store.PostgresURL, connectPolicy, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Users:    authpg.NewUserRepository(pool),
			Rooms:    mazepg.NewRoomRepository(pool),
			Riddles:  mazepg.NewRiddleRepository(pool),
			Progress: mazepg.NewProgressRepository(pool),
			Games:    mazepg.NewGameWriter(pool),
			Ping:     pool.Ping,
			Close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.Store.MongoURI, connectPolicy, logger)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Store.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx) //nolint:errcheck // index error takes precedence
			return nil, err
		}
		s := mongostore.New(db, mongostore.DefaultOptions())
		return &Backend{
			Users:    s.Users(),
			Rooms:    s.Rooms(),
			Riddles:  s.Riddles(),
			Progress: s.Progress(),
			Games:    s.Games(),
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			Close: client.Disconnect,
		}, nil
	}
	return nil, oops.Code("CONFIG_INVALID").With("backend", cfg.Store.Backend).Errorf("unknown store backend")
}

func migrateUp(migrators MigratorFactory, url string, logger *slog.Logger) error {
	m, err := migrators(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Debug("schema up to date")
		return nil
	}
	logger.Info("applying migrations", "count", len(pending))
	return m.Up()
}

// openEphemeral selects memory or Redis. The per-address limit comes from
// the auth configuration.
func openEphemeral(cfg *config.Config) EphemeralStore {
	limits := ephemeral.DefaultLimits().WithRule(ephemeral.Limit{
		Prefix: "ip:",
		Max:    int64(cfg.Auth.IPAttemptLimit),
		Window: cfg.Auth.IPAttemptWindow,
	})
	if cfg.Ephemeral.Backend == config.EphemeralRedis {
		return ephemeral.NewRedis(ephemeral.RedisOptions{
			Addr:     cfg.Ephemeral.RedisAddr,
			Password: cfg.Ephemeral.RedisPassword,
			DB:       cfg.Ephemeral.RedisDB,
			Prefix:   "labyrinth:",
		}, limits)
	}
	return ephemeral.NewMemory(limits)
}

// openMailer starts the asynchronous activation mailer.
func openMailer(cfg *config.Config, recorder mail.DropRecorder, logger *slog.Logger) *mail.Async {
	var sender mail.Sender = mail.NewLogSender(logger)
	if cfg.Mail.Backend == config.MailSMTP {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
	}
	return mail.NewAsync(sender, mail.AsyncOptions{
		QueueSize:   cfg.Mail.QueueSize,
		SendTimeout: cfg.Mail.SendTimeout,
		Logger:      logger,
		Recorder:    recorder,
	})
}

// openMedia builds the resolver for riddle media.
func openMedia(ctx context.Context, cfg *config.Config) (maze.MediaResolver, error) {
	if cfg.Media.Backend == config.MediaS3 {
		return media.NewS3Resolver(ctx, media.S3Config{
			Bucket:    cfg.Media.S3Bucket,
			Region:    cfg.Media.S3Region,
			Endpoint:  cfg.Media.S3Endpoint,
			AccessKey: cfg.Media.S3AccessKey,
			SecretKey: cfg.Media.S3SecretKey,
			TTL:       cfg.Media.PresignTTL,
		})
	}
	return media.NewStaticResolver(cfg.Media.BaseURL)
}

// breachChecker uses the configured list, then the XDG default, then none.
func breachChecker(cfg *config.Config) auth.BreachChecker {
	path := cfg.Auth.BreachedPasswordsFile
	if path == "" && xdg.FileExists(xdg.BreachedPasswordsFile()) {
		path = xdg.BreachedPasswordsFile()
	}
	if path == "" {
		return auth.NoBreachCheck{}
	}
	return auth.NewFileBreachChecker(path)
}

// accountDeps are the runtime collaborators of newManager.
type accountDeps struct {
	backend   *Backend
	ephemeral EphemeralStore
	mailer    auth.Mailer
	onboarder auth.Onboarder
	recorder  auth.LoginRecorder
	logger    *slog.Logger
}

// newManager builds the account manager from configuration.
func newManager(cfg *config.Config, d accountDeps) (*auth.Manager, *auth.SessionIssuer, error) {
	sessions, err := auth.NewSessionIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	ceremony, err := auth.NewWebAuthnCeremony(auth.WebAuthnConfig{
		RPID:          cfg.WebAuthn.RPID,
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
		ChallengeTTL:  cfg.Auth.ChallengeTTL,
	}, d.ephemeral)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := auth.NewManager(auth.ManagerDeps{
		Users:        d.backend.Users,
		Hasher:       auth.NewArgon2idHasher(),
		Sessions:     sessions,
		TOTP:         auth.NewTOTPEngine(cfg.Auth.TOTPIssuer, d.ephemeral),
		WebAuthn:     ceremony,
		Challenges:   d.ephemeral,
		Limiter:      d.ephemeral,
		Breach:       breachChecker(cfg),
		Mailer:       d.mailer,
		Onboarder:    d.onboarder,
		Recorder:     d.recorder,
		Logger:       d.logger,
		Lockout:      auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold, Duration: cfg.Auth.LockoutDuration},
		ChallengeTTL: cfg.Auth.ChallengeTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return mgr, sessions, nil
}

func newAPIServer(cfg *config.Config, handler http.Handler, logger *slog.Logger) APIServer {
	return web.NewServer(web.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}, handler, logger)
}
