// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package config defines the Labyrinth server configuration and loads it from
// defaults, a YAML file, LABYRINTH_* environment variables and command-line
// flags, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Ephemeral state backends.
const (
	EphemeralMemory = "memory"
	EphemeralRedis  = "redis"
)

// Mail backends.
const (
	MailLog  = "log"
	MailSMTP = "smtp"
)

// Media backends.
const (
	MediaStatic = "static"
	MediaS3     = "s3"
)

// MinJWTSecretLength is the minimum accepted signing secret size in bytes.
const MinJWTSecretLength = 32

// Config is the complete server configuration. It is built once at startup
// and handed to each component.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Store     StoreConfig     `koanf:"store"`
	Ephemeral EphemeralConfig `koanf:"ephemeral"`
	Auth      AuthConfig      `koanf:"auth"`
	WebAuthn  WebAuthnConfig  `koanf:"webauthn"`
	Mail      MailConfig      `koanf:"mail"`
	Media     MediaConfig     `koanf:"media"`
	Game      GameConfig      `koanf:"game"`
}

// LogConfig controls the slog logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// HTTPConfig controls the REST listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	// AllowedOrigins are glob patterns matched against the Origin header.
	AllowedOrigins    []string `koanf:"allowed_origins"`
	TrustProxyHeaders bool     `koanf:"trust_proxy_headers"`
}

// MetricsConfig controls the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// TracingConfig controls request spans. Spans are always recorded so log
// lines carry trace ids; they are exported only when Endpoint is set.
type TracingConfig struct {
	// Endpoint is an OTLP/HTTP collector URL, e.g. http://collector:4318.
	Endpoint    string  `koanf:"endpoint"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// StoreConfig selects and configures the persistent store.
type StoreConfig struct {
	Backend       string `koanf:"backend"`
	PostgresURL   string `koanf:"postgres_url"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
	AutoMigrate   bool   `koanf:"auto_migrate"`
}

// EphemeralConfig selects where challenges, TOTP replay markers and attempt
// counters live.
type EphemeralConfig struct {
	Backend       string `koanf:"backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// AuthConfig holds authentication policy.
type AuthConfig struct {
	JWTSecret             string        `koanf:"jwt_secret"`
	JWTIssuer             string        `koanf:"jwt_issuer"`
	SessionTTL            time.Duration `koanf:"session_ttl"`
	ChallengeTTL          time.Duration `koanf:"challenge_ttl"`
	BreachedPasswordsFile string        `koanf:"breached_passwords_file"`
	TOTPIssuer            string        `koanf:"totp_issuer"`
	LockoutThreshold      int           `koanf:"lockout_threshold"`
	LockoutDuration       time.Duration `koanf:"lockout_duration"`
	IPAttemptLimit        int           `koanf:"ip_attempt_limit"`
	IPAttemptWindow       time.Duration `koanf:"ip_attempt_window"`
}

// WebAuthnConfig identifies the relying party.
type WebAuthnConfig struct {
	RPID          string   `koanf:"rp_id"`
	RPDisplayName string   `koanf:"rp_display_name"`
	RPOrigins     []string `koanf:"rp_origins"`
}

// MailConfig selects the activation mail transport.
type MailConfig struct {
	Backend      string        `koanf:"backend"`
	From         string        `koanf:"from"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUsername string        `koanf:"smtp_username"`
	SMTPPassword string        `koanf:"smtp_password"`
	QueueSize    int           `koanf:"queue_size"`
	SendTimeout  time.Duration `koanf:"send_timeout"`
}

// MediaConfig selects how riddle media references become URLs.
type MediaConfig struct {
	Backend     string        `koanf:"backend"`
	BaseURL     string        `koanf:"base_url"`
	S3Bucket    string        `koanf:"s3_bucket"`
	S3Region    string        `koanf:"s3_region"`
	S3Endpoint  string        `koanf:"s3_endpoint"`
	S3AccessKey string        `koanf:"s3_access_key"`
	S3SecretKey string        `koanf:"s3_secret_key"`
	PresignTTL  time.Duration `koanf:"presign_ttl"`
}

// GameConfig selects the game new players start in.
type GameConfig struct {
	DefaultGameID string `koanf:"default_game_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			AllowedOrigins:    []string{"http://localhost:*"},
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Tracing: TracingConfig{SampleRatio: 1},
		Store: StoreConfig{
			Backend:       StorePostgres,
			MongoDatabase: "labyrinth",
			AutoMigrate:   true,
		},
		Ephemeral: EphemeralConfig{Backend: EphemeralMemory},
		Auth: AuthConfig{
			JWTIssuer:        "labyrinth",
			SessionTTL:       30 * 24 * time.Hour,
			ChallengeTTL:     2 * time.Minute,
			TOTPIssuer:       "Labyrinth",
			LockoutThreshold: 7,
			LockoutDuration:  15 * time.Minute,
			IPAttemptLimit:   50,
			IPAttemptWindow:  time.Minute,
		},
		WebAuthn: WebAuthnConfig{
			RPID:          "localhost",
			RPDisplayName: "Labyrinth",
			RPOrigins:     []string{"http://localhost:8080"},
		},
		Mail: MailConfig{
			Backend:     MailLog,
			From:        "labyrinth@localhost",
			SMTPPort:    587,
			QueueSize:   64,
			SendTimeout: 10 * time.Second,
		},
		Media: MediaConfig{
			Backend:    MediaStatic,
			BaseURL:    "/media/",
			PresignTTL: 15 * time.Minute,
		},
		Game: GameConfig{DefaultGameID: "default"},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}
	if c.Tracing.Endpoint != "" {
		if u, err := url.Parse(c.Tracing.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("tracing.endpoint must be an absolute URL, got %q", c.Tracing.Endpoint)
		}
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if !slices.Contains([]string{EphemeralMemory, EphemeralRedis}, c.Ephemeral.Backend) {
		return fmt.Errorf("ephemeral.backend must be %q or %q, got %q", EphemeralMemory, EphemeralRedis, c.Ephemeral.Backend)
	}
	if c.Ephemeral.Backend == EphemeralRedis && c.Ephemeral.RedisAddr == "" {
		return fmt.Errorf("ephemeral.redis_addr is required for the redis backend")
	}
	if c.WebAuthn.RPID == "" || len(c.WebAuthn.RPOrigins) == 0 {
		return fmt.Errorf("webauthn.rp_id and webauthn.rp_origins are required")
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	return c.validateMedia()
}

// ValidateStore checks only the store settings, for commands that touch
// nothing else.
func (c *Config) ValidateStore() error {
	return c.validateStore()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres backend")
		}
	case StoreMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return fmt.Errorf("store.mongo_uri and store.mongo_database are required for the mongo backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StorePostgres, StoreMongo, c.Store.Backend)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.ChallengeTTL <= 0 {
		return fmt.Errorf("auth.challenge_ttl must be positive")
	}
	if c.Auth.LockoutThreshold <= 0 || c.Auth.LockoutDuration <= 0 {
		return fmt.Errorf("auth.lockout_threshold and auth.lockout_duration must be positive")
	}
	if c.Auth.IPAttemptLimit <= 0 || c.Auth.IPAttemptWindow <= 0 {
		return fmt.Errorf("auth.ip_attempt_limit and auth.ip_attempt_window must be positive")
	}
	return nil
}

func (c *Config) validateMail() error {
	switch c.Mail.Backend {
	case MailLog:
	case MailSMTP:
		if c.Mail.SMTPHost == "" || c.Mail.SMTPPort <= 0 {
			return fmt.Errorf("mail.smtp_host and mail.smtp_port are required for the smtp backend")
		}
	default:
		return fmt.Errorf("mail.backend must be %q or %q, got %q", MailLog, MailSMTP, c.Mail.Backend)
	}
	if c.Mail.QueueSize <= 0 {
		return fmt.Errorf("mail.queue_size must be positive")
	}
	return nil
}

func (c *Config) validateMedia() error {
	switch c.Media.Backend {
	case MediaStatic:
		if _, err := url.Parse(c.Media.BaseURL); err != nil {
			return fmt.Errorf("media.base_url: %w", err)
		}
	case MediaS3:
		if c.Media.S3Bucket == "" || c.Media.S3Region == "" {
			return fmt.Errorf("media.s3_bucket and media.s3_region are required for the s3 backend")
		}
		if c.Media.PresignTTL <= 0 {
			return fmt.Errorf("media.presign_ttl must be positive")
		}
	default:
		return fmt.Errorf("media.backend must be %q or %q, got %q", MediaStatic, MediaS3, c.Media.Backend)
	}
	return nil
}
