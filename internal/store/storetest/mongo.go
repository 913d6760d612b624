// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package storetest

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/labyrinth-game/labyrinth/internal/store/mongostore"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Mongo is an indexed MongoDB container.
type Mongo struct {
	URI       string
	Client    *mongo.Client
	DB        *mongo.Database
	container *mongodb.MongoDBContainer
}

// StartMongo runs mongo:7 and creates the labyrinth_test database indexes.
func StartMongo(ctx context.Context) (*Mongo, error) {
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return nil, oops.With("operation", "start mongo container").Wrap(err)
	}
	m := &Mongo{container: container}

	m.URI, err = container.ConnectionString(ctx)
	if err != nil {
		m.Terminate(ctx)
		return nil, oops.With("operation", "get connection string").Wrap(err)
	}

	m.Client, err = mongostore.Connect(ctx, m.URI, errutil.DefaultRetryPolicy, slog.Default())
	if err != nil {
		m.Terminate(ctx)
		return nil, err
	}
	m.DB = m.Client.Database("labyrinth_test")
	if err := mongostore.EnsureIndexes(ctx, m.DB); err != nil {
		m.Terminate(ctx)
		return nil, err
	}
	return m, nil
}

// Reset empties every collection, keeping the indexes.
func (m *Mongo) Reset(ctx context.Context) error {
	for _, coll := range []string{
		mongostore.UsersCollection,
		mongostore.RoomsCollection,
		mongostore.RiddlesCollection,
		mongostore.GamesCollection,
	} {
		if _, err := m.DB.Collection(coll).DeleteMany(ctx, bson.M{}); err != nil {
			return oops.With("collection", coll).Wrap(err)
		}
	}
	return nil
}

// Terminate disconnects and removes the container.
func (m *Mongo) Terminate(ctx context.Context) {
	if m.Client != nil {
		_ = m.Client.Disconnect(ctx) //nolint:errcheck // test teardown
	}
	_ = m.container.Terminate(ctx) //nolint:errcheck // test teardown
}
