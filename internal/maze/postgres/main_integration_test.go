// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/labyrinth-game/labyrinth/internal/store/storetest"
)

var testDB *storetest.Postgres

func TestMain(m *testing.M) {
	ctx := context.Background()
	db, err := storetest.StartPostgres(ctx)
	if err != nil {
		panic("failed to start postgres: " + err.Error())
	}
	testDB = db

	code := m.Run()
	db.Terminate(ctx)
	os.Exit(code)
}
