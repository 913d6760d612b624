// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

type activationDoc struct {
	PIN                 string     `bson:"pin"`
	Activated           bool       `bson:"activated"`
	RegistrationStarted time.Time  `bson:"registration_started"`
	Registered          *time.Time `bson:"registered,omitempty"`
}

type credentialDoc struct {
	ID              []byte               `bson:"id"`
	PublicKey       []byte               `bson:"public_key"`
	AttestationType string               `bson:"attestation_type"`
	Transports      []string             `bson:"transports,omitempty"`
	Flags           auth.CredentialFlags `bson:"flags"`
	AAGUID          []byte               `bson:"aaguid,omitempty"`
	SignCount       int64                `bson:"sign_count"`
	Attachment      string               `bson:"attachment,omitempty"`
	Disabled        bool                 `bson:"disabled"`
	CreatedAt       time.Time            `bson:"created_at"`
	LastUsedAt      *time.Time           `bson:"last_used_at,omitempty"`
}

// userDoc holds every user field except the embedded progress, so a $set of
// the whole struct never touches progress.
type userDoc struct {
	ID                       string          `bson:"_id"`
	Username                 string          `bson:"username"`
	Email                    string          `bson:"email"`
	EmailLower               string          `bson:"email_lower"`
	PasswordHash             string          `bson:"password_hash"`
	Role                     string          `bson:"role"`
	Activation               activationDoc   `bson:"activation"`
	TOTPSecret               string          `bson:"totp_secret"`
	Credentials              []credentialDoc `bson:"webauthn_credentials"`
	SecondFactorPendingUntil *time.Time      `bson:"second_factor_pending_until"`
	RecoveryKeyHashes        []string        `bson:"recovery_key_hashes"`
	FailedAttempts           int             `bson:"failed_attempts"`
	LockedUntil              *time.Time      `bson:"locked_until"`
	LastLogin                *time.Time      `bson:"last_login"`
	CreatedAt                time.Time       `bson:"created_at"`
	UpdatedAt                time.Time       `bson:"updated_at"`
	Version                  int64           `bson:"version"`
}

// UserRepository implements auth.UserRepository on the users collection.
type UserRepository struct {
	coll *mongo.Collection
	cas  errutil.RetryPolicy
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.coll.InsertOne(ctx, toUserDoc(user))
	if field, dup := duplicateField(err); dup {
		return oops.With("field", field).With("username", user.Username).Wrap(auth.ErrDuplicate)
	}
	return classify("insert user", err)
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	doc, err := r.find(ctx, username)
	if err != nil {
		return nil, err
	}
	return doc.toUser()
}

// Update applies fn to the stored user and writes it back if the version
// is unchanged. Lost races re-read and re-apply fn.
func (r *UserRepository) Update(ctx context.Context, username string, fn func(*auth.User) error) (*auth.User, error) {
	return errutil.RetryValue(ctx, r.cas, func(ctx context.Context) (*auth.User, error) {
		doc, err := r.find(ctx, username)
		if err != nil {
			return nil, err
		}
		user, err := doc.toUser()
		if err != nil {
			return nil, err
		}
		if err := fn(user); err != nil {
			return nil, err
		}
		user.Version = doc.Version + 1

		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "version": doc.Version},
			bson.M{"$set": toUserDoc(user)},
		)
		if field, dup := duplicateField(err); dup {
			return nil, oops.With("field", field).With("username", username).Wrap(auth.ErrDuplicate)
		}
		if err != nil {
			return nil, classify("update user", err)
		}
		if res.MatchedCount == 0 {
			return nil, conflict("update user")
		}
		return user, nil
	})
}

// CredentialOwner returns the username holding a WebAuthn credential.
func (r *UserRepository) CredentialOwner(ctx context.Context, credentialID []byte) (string, error) {
	var doc struct {
		Username string `bson:"username"`
	}
	err := r.coll.FindOne(ctx,
		bson.M{"webauthn_credentials.id": credentialID},
		options.FindOne().SetProjection(bson.M{"username": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", classify("get credential owner", err)
	}
	return doc.Username, nil
}

func (r *UserRepository) find(ctx context.Context, username string) (*userDoc, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get user", err)
	}
	return &doc, nil
}

func toUserDoc(u *auth.User) userDoc {
	creds := make([]credentialDoc, len(u.WebAuthnCredentials))
	for i, c := range u.WebAuthnCredentials {
		creds[i] = credentialDoc{
			ID:              c.ID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Transports:      c.Transports,
			Flags:           c.Flags,
			AAGUID:          c.AAGUID,
			SignCount:       int64(c.SignCount),
			Attachment:      c.Attachment,
			Disabled:        c.Disabled,
			CreatedAt:       c.CreatedAt,
			LastUsedAt:      c.LastUsedAt,
		}
	}
	hashes := u.RecoveryKeyHashes
	if hashes == nil {
		hashes = []string{}
	}
	return userDoc{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		EmailLower:   strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         u.Role.String(),
		Activation: activationDoc{
			PIN:                 u.Activation.PIN,
			Activated:           u.Activation.Activated,
			RegistrationStarted: u.Activation.RegistrationStarted,
			Registered:          u.Activation.Registered,
		},
		TOTPSecret:               u.TOTPSecret,
		Credentials:              creds,
		SecondFactorPendingUntil: u.SecondFactorPendingUntil,
		RecoveryKeyHashes:        hashes,
		FailedAttempts:           u.FailedAttempts,
		LockedUntil:              u.LockedUntil,
		LastLogin:                u.LastLogin,
		CreatedAt:                u.CreatedAt,
		UpdatedAt:                u.UpdatedAt,
		Version:                  u.Version,
	}
}

func (d *userDoc) toUser() (*auth.User, error) {
	id, err := ulid.Parse(d.ID)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", d.ID).Wrap(err)
	}
	role, err := auth.ParseRole(d.Role)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ROLE").With("role", d.Role).Wrap(err)
	}
	creds := make([]auth.WebAuthnCredential, len(d.Credentials))
	for i, c := range d.Credentials {
		creds[i] = auth.WebAuthnCredential{
			ID:              c.ID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Transports:      c.Transports,
			Flags:           c.Flags,
			AAGUID:          c.AAGUID,
			SignCount:       uint32(c.SignCount), //nolint:gosec // stored from a uint32
			Attachment:      c.Attachment,
			Disabled:        c.Disabled,
			CreatedAt:       c.CreatedAt,
			LastUsedAt:      c.LastUsedAt,
		}
	}
	return &auth.User{
		ID:           id,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         role,
		Activation: auth.Activation{
			PIN:                 d.Activation.PIN,
			Activated:           d.Activation.Activated,
			RegistrationStarted: d.Activation.RegistrationStarted,
			Registered:          d.Activation.Registered,
		},
		TOTPSecret:               d.TOTPSecret,
		WebAuthnCredentials:      creds,
		SecondFactorPendingUntil: d.SecondFactorPendingUntil,
		RecoveryKeyHashes:        d.RecoveryKeyHashes,
		FailedAttempts:           d.FailedAttempts,
		LockedUntil:              d.LockedUntil,
		LastLogin:                d.LastLogin,
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
		Version:                  d.Version,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
