// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/maze/mazetest"
	"github.com/labyrinth-game/labyrinth/internal/maze/postgres"
)

func newPlayer(ctx context.Context, t *testing.T, username string) {
	t.Helper()
	id := ulid.Make().String()
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, registration_started)
		VALUES ($1, $2, $3, 'hash', NOW())
	`, id, username, username+"@example.com")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
}

func newEngine(t *testing.T) *maze.Engine {
	t.Helper()
	mazetest.Seed(t, postgres.NewGameWriter(testDB.Pool))
	engine, err := maze.NewEngine(maze.EngineDeps{
		Rooms:         postgres.NewRoomRepository(testDB.Pool),
		Riddles:       postgres.NewRiddleRepository(testDB.Pool),
		Progress:      postgres.NewProgressRepository(testDB.Pool),
		DefaultGameID: mazetest.TutorialGameID,
	})
	require.NoError(t, err)
	return engine
}

func TestEngine_Integration_PlaysThroughTheTutorial(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)
	newPlayer(ctx, t, "theseus")

	p, room, err := engine.CurrentRoom(ctx, "theseus")
	require.NoError(t, err)
	assert.Equal(t, "hall", room.ID)
	assert.Zero(t, p.Score())

	res, err := engine.Go(ctx, "theseus", maze.East)
	require.NoError(t, err)
	assert.True(t, res.Locked)

	solved, err := engine.Solve(ctx, "theseus", "answer", "41")
	require.NoError(t, err)
	assert.False(t, solved.Solved)
	solved, err = engine.Solve(ctx, "theseus", "answer", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(8), solved.Score)

	res, err = engine.Go(ctx, "theseus", maze.East)
	require.NoError(t, err)
	assert.Equal(t, "library", res.Room.ID)

	_, err = engine.Solve(ctx, "theseus", "capital", "PARIS")
	require.NoError(t, err)
	res, err = engine.Go(ctx, "theseus", maze.North)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	stored, err := postgres.NewProgressRepository(testDB.Pool).Get(ctx, "theseus")
	require.NoError(t, err)
	assert.Equal(t, int64(28), stored.Score())
	assert.Equal(t, 2, stored.Level)
	assert.True(t, stored.HasFinished(mazetest.TutorialGameID))
	assert.ElementsMatch(t, []string{"hall", "library", "tower"}, stored.RoomsEntered)
	assert.Len(t, stored.Solved, 2)
}

func TestEngine_Integration_ConcurrentSolvesCreditOnce(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)
	newPlayer(ctx, t, "ariadne")
	_, err := engine.Progress(ctx, "ariadne")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, err := engine.Solve(ctx, "ariadne", "answer", "42")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	p, err := engine.Progress(ctx, "ariadne")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Score())
}

func TestGameWriter_Integration_Republish(t *testing.T) {
	ctx := context.Background()
	writer := postgres.NewGameWriter(testDB.Pool)
	game := mazetest.Seed(t, writer)

	game.Name = "Tutorial, revised"
	game.Rooms[0].Coords = maze.Coords{X: 5, Y: 5}
	require.NoError(t, writer.SaveGame(ctx, game))

	rooms, err := postgres.NewRoomRepository(testDB.Pool).ListByGame(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, rooms, len(game.Rooms))
	assert.Equal(t, maze.Coords{X: 5, Y: 5}, rooms[0].Coords)

	var name string
	var updated time.Time
	require.NoError(t, testDB.Pool.QueryRow(ctx, `SELECT name, updated_at FROM games WHERE id = $1`, game.ID).Scan(&name, &updated))
	assert.Equal(t, "Tutorial, revised", name)
}
