// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/store"
)

const userColumns = `id, username, email, password_hash, role,
	activation_pin, activated, registration_started, registered_at,
	totp_secret, second_factor_pending_until,
	failed_attempts, locked_until, last_login, created_at, updated_at, version`

const credentialColumns = `id, public_key, attestation_type, transports, flags, aaguid,
	sign_count, attachment, disabled, created_at, last_used_at`

// duplicateFields maps unique constraints to the field reported with
// auth.ErrDuplicate.
var duplicateFields = map[string]string{
	"users_username_key":        "username",
	"users_pkey":                "username",
	"users_email_key":           "email",
	"webauthn_credentials_pkey": "credential_id",
}

// UserRepository implements auth.UserRepository using PostgreSQL. A user's
// credentials and recovery keys live in child tables and are rewritten with
// the user row on every update.
type UserRepository struct {
	pool store.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user with its credentials and recovery keys.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	return store.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			user.ID.String(),
			user.Username,
			user.Email,
			user.PasswordHash,
			user.Role.String(),
			user.Activation.PIN,
			user.Activation.Activated,
			user.Activation.RegistrationStarted,
			user.Activation.Registered,
			user.TOTPSecret,
			user.SecondFactorPendingUntil,
			user.FailedAttempts,
			user.LockedUntil,
			user.LastLogin,
			user.CreatedAt,
			user.UpdatedAt,
			user.Version,
		)
		if err != nil {
			return writeError("insert user", user.Username, err)
		}
		return r.writeChildren(ctx, tx, user)
	})
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, store.Classify("get user", err)
	}
	if err := loadChildren(ctx, r.pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update locks the user row, applies fn and writes the result back in the
// same transaction.
func (r *UserRepository) Update(ctx context.Context, username string, fn func(*auth.User) error) (*auth.User, error) {
	var updated *auth.User
	err := store.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 FOR UPDATE`, username)
		user, err := scanUser(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.With("username", username).Wrap(auth.ErrNotFound)
		}
		if err != nil {
			return store.Classify("lock user", err)
		}
		if err := loadChildren(ctx, tx, user); err != nil {
			return err
		}

		if err := fn(user); err != nil {
			return err
		}
		user.Version++

		_, err = tx.Exec(ctx, `
			UPDATE users SET
				username = $2,
				email = $3,
				password_hash = $4,
				role = $5,
				activation_pin = $6,
				activated = $7,
				registration_started = $8,
				registered_at = $9,
				totp_secret = $10,
				second_factor_pending_until = $11,
				failed_attempts = $12,
				locked_until = $13,
				last_login = $14,
				updated_at = $15,
				version = $16
			WHERE id = $1
		`,
			user.ID.String(),
			user.Username,
			user.Email,
			user.PasswordHash,
			user.Role.String(),
			user.Activation.PIN,
			user.Activation.Activated,
			user.Activation.RegistrationStarted,
			user.Activation.Registered,
			user.TOTPSecret,
			user.SecondFactorPendingUntil,
			user.FailedAttempts,
			user.LockedUntil,
			user.LastLogin,
			user.UpdatedAt,
			user.Version,
		)
		if err != nil {
			return writeError("update user", username, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM webauthn_credentials WHERE user_id = $1`, user.ID.String()); err != nil {
			return store.Classify("clear credentials", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recovery_keys WHERE user_id = $1`, user.ID.String()); err != nil {
			return store.Classify("clear recovery keys", err)
		}
		if err := r.writeChildren(ctx, tx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CredentialOwner returns the username holding a WebAuthn credential.
func (r *UserRepository) CredentialOwner(ctx context.Context, credentialID []byte) (string, error) {
	var username string
	err := r.pool.QueryRow(ctx, `
		SELECT u.username
		FROM webauthn_credentials c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`, credentialID).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", store.Classify("get credential owner", err)
	}
	return username, nil
}

func (r *UserRepository) writeChildren(ctx context.Context, tx pgx.Tx, user *auth.User) error {
	for _, c := range user.WebAuthnCredentials {
		flags, err := json.Marshal(c.Flags)
		if err != nil {
			return oops.With("operation", "marshal credential flags").Wrap(err)
		}
		transports := c.Transports
		if transports == nil {
			transports = []string{}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO webauthn_credentials (user_id, `+credentialColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			user.ID.String(),
			c.ID,
			c.PublicKey,
			c.AttestationType,
			transports,
			flags,
			c.AAGUID,
			int64(c.SignCount),
			c.Attachment,
			c.Disabled,
			c.CreatedAt,
			c.LastUsedAt,
		)
		if err != nil {
			return writeError("insert credential", user.Username, err)
		}
	}
	for _, hash := range user.RecoveryKeyHashes {
		_, err := tx.Exec(ctx, `INSERT INTO recovery_keys (user_id, key_hash) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			user.ID.String(), hash)
		if err != nil {
			return store.Classify("insert recovery key", err)
		}
	}
	return nil
}

func loadChildren(ctx context.Context, q store.Querier, user *auth.User) error {
	rows, err := q.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM webauthn_credentials
		WHERE user_id = $1
		ORDER BY created_at, id
	`, user.ID.String())
	if err != nil {
		return store.Classify("list credentials", err)
	}
	creds, err := pgx.CollectRows(rows, scanCredential)
	if err != nil {
		return store.Classify("scan credentials", err)
	}
	user.WebAuthnCredentials = creds

	rows, err = q.Query(ctx, `SELECT key_hash FROM recovery_keys WHERE user_id = $1 ORDER BY key_hash`, user.ID.String())
	if err != nil {
		return store.Classify("list recovery keys", err)
	}
	hashes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return store.Classify("scan recovery keys", err)
	}
	user.RecoveryKeyHashes = hashes
	return nil
}

// scanUser scans a user row. pgx.ErrNoRows is returned unchanged.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u      auth.User
		idStr  string
		role   string
		failed int32
	)
	err := row.Scan(
		&idStr,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.Activation.PIN,
		&u.Activation.Activated,
		&u.Activation.RegistrationStarted,
		&u.Activation.Registered,
		&u.TOTPSecret,
		&u.SecondFactorPendingUntil,
		&failed,
		&u.LockedUntil,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Version,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}

	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	u.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ROLE").With("role", role).Wrap(err)
	}
	u.FailedAttempts = int(failed)
	return &u, nil
}

func scanCredential(row pgx.CollectableRow) (auth.WebAuthnCredential, error) {
	var (
		c         auth.WebAuthnCredential
		flags     []byte
		signCount int64
		lastUsed  *time.Time
	)
	err := row.Scan(
		&c.ID,
		&c.PublicKey,
		&c.AttestationType,
		&c.Transports,
		&flags,
		&c.AAGUID,
		&signCount,
		&c.Attachment,
		&c.Disabled,
		&c.CreatedAt,
		&lastUsed,
	)
	if err != nil {
		return c, err //nolint:wrapcheck // CollectRows caller classifies
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &c.Flags); err != nil {
			return c, oops.Code("USER_INVALID_CREDENTIAL_FLAGS").Wrap(err)
		}
	}
	c.SignCount = uint32(signCount) //nolint:gosec // stored from a uint32
	c.LastUsedAt = lastUsed
	return c, nil
}

// writeError maps unique violations to auth.ErrDuplicate.
func writeError(op, username string, err error) error {
	if constraint, ok := store.UniqueViolation(err); ok {
		field, known := duplicateFields[constraint]
		if !known {
			field = constraint
		}
		return oops.With("field", field).With("username", username).Wrap(auth.ErrDuplicate)
	}
	return store.Classify(op, err)
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
