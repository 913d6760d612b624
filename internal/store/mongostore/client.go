// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package mongostore implements the account and maze repositories on
// MongoDB. Users carry their progress as an embedded document; rooms, riddles
// and games have their own collections. Read-modify-write goes through a
// compare-and-swap on a version field.
package mongostore

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Collection names.
const (
	UsersCollection   = "users"
	RoomsCollection   = "rooms"
	RiddlesCollection = "riddles"
	GamesCollection   = "games"
)

// Unique index names.
const (
	indexUsername   = "users_username_key"
	indexEmail      = "users_email_key"
	indexCredential = "users_credential_key"
)

// pingTimeout bounds each connection probe.
const pingTimeout = 5 * time.Second

// Connect opens a client for uri and waits until the primary answers a
// ping, retrying under policy.
func Connect(ctx context.Context, uri string, policy errutil.RetryPolicy, logger *slog.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	attempt := 0
	err = errutil.Retry(ctx, policy, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			logger.WarnContext(ctx, "mongodb not ready", "attempt", attempt, "error", err)
			return errutil.Transient(CodeUnavailable).With("operation", "ping").Wrap(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // connect error takes precedence
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}
	logger.InfoContext(ctx, "connected to mongodb")
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is
// idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(indexUsername).SetUnique(true)},
			{Keys: bson.D{{Key: "email_lower", Value: 1}}, Options: options.Index().SetName(indexEmail).SetUnique(true)},
			{
				Keys: bson.D{{Key: "webauthn_credentials.id", Value: 1}},
				Options: options.Index().
					SetName(indexCredential).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"webauthn_credentials.id": bson.M{"$exists": true}}),
			},
		},
		RoomsCollection: {
			{Keys: bson.D{{Key: "game_id", Value: 1}, {Key: "number", Value: 1}}},
		},
		RiddlesCollection: {
			{Keys: bson.D{{Key: "game_id", Value: 1}}},
			{Keys: bson.D{{Key: "level", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return classify("create indexes", err)
		}
	}
	return nil
}

// Options tune a Store.
type Options struct {
	// CAS bounds retries of compare-and-swap conflicts and transient errors.
	CAS errutil.RetryPolicy
}

// DefaultOptions retries a lost compare-and-swap up to five times.
func DefaultOptions() Options {
	return Options{CAS: errutil.RetryPolicy{Base: 10 * time.Millisecond, MaxAttempts: 5}}
}

// Store hands out repositories over one database.
type Store struct {
	db   *mongo.Database
	opts Options
}

// New creates a Store on db.
func New(db *mongo.Database, opts Options) *Store {
	if opts.CAS.MaxAttempts == 0 {
		opts.CAS = DefaultOptions().CAS
	}
	return &Store{db: db, opts: opts}
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{coll: s.db.Collection(UsersCollection), cas: s.opts.CAS}
}

// Progress returns the progress repository.
func (s *Store) Progress() *ProgressRepository {
	return &ProgressRepository{coll: s.db.Collection(UsersCollection), cas: s.opts.CAS}
}

// Rooms returns the room repository.
func (s *Store) Rooms() *RoomRepository {
	return &RoomRepository{coll: s.db.Collection(RoomsCollection)}
}

// Riddles returns the riddle repository.
func (s *Store) Riddles() *RiddleRepository {
	return &RiddleRepository{coll: s.db.Collection(RiddlesCollection)}
}

// Games returns the game writer.
func (s *Store) Games() *GameWriter {
	return &GameWriter{
		games:   s.db.Collection(GamesCollection),
		rooms:   s.db.Collection(RoomsCollection),
		riddles: s.db.Collection(RiddlesCollection),
	}
}
