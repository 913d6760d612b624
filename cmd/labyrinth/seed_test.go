// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/config"
	"github.com/labyrinth-game/labyrinth/internal/maze/mazetest"
)

func writeMaze(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maze.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestSeed_PublishesMaze(t *testing.T) {
	isolateEnv(t)
	backend := newMemoryBackend()
	deps := &Deps{BackendFactory: backend.factory}
	path := writeMaze(t, mazetest.TutorialYAML)

	out, err := execute(t, deps, "seed", path, "--database-url", "postgres://db/labyrinth")

	require.NoError(t, err)
	assert.Contains(t, out, `Published game "default"`)
	assert.True(t, backend.closed)

	entry, err := backend.mazes.Rooms().Entry(context.Background(), mazetest.TutorialGameID)
	require.NoError(t, err)
	assert.True(t, entry.Entry)

	// Publishing again replaces the game.
	_, err = execute(t, deps, "seed", path, "--database-url", "postgres://db/labyrinth")
	require.NoError(t, err)
	rooms, err := backend.mazes.Rooms().ListByGame(context.Background(), mazetest.TutorialGameID)
	require.NoError(t, err)
	assert.Len(t, rooms, 4)
}

func TestSeed_InvalidFileNeverOpensStore(t *testing.T) {
	isolateEnv(t)
	opened := false
	deps := &Deps{BackendFactory: func(ctx context.Context, cfg *config.Config, m MigratorFactory, l *slog.Logger) (*Backend, error) {
		opened = true
		return newMemoryBackend().factory(ctx, cfg, m, l)
	}}
	path := writeMaze(t, []byte("schema_version: \"1.0\"\ngame: {id: x, name: X}\n"))

	_, err := execute(t, deps, "seed", path, "--database-url", "postgres://db/labyrinth")

	require.Error(t, err)
	assert.False(t, opened)
}

func TestSeed_Flags(t *testing.T) {
	seed := findCommand(t, NewRootCmd(nil), "seed")

	flag := seed.Flags().Lookup("timeout")
	require.NotNil(t, flag)
	assert.Equal(t, defaultSeedTimeout.String(), flag.DefValue)
	assert.Equal(t, 30*time.Second, defaultSeedTimeout)
}

func TestValidateMaze(t *testing.T) {
	valid := writeMaze(t, mazetest.TutorialYAML)
	invalid := writeMaze(t, []byte("not: [a maze"))

	t.Run("valid file", func(t *testing.T) {
		out, err := execute(t, nil, "validate-maze", valid)

		require.NoError(t, err)
		assert.Contains(t, out, "ok")
		assert.Contains(t, out, `game "default", 4 rooms, 3 riddles`)
	})

	t.Run("one bad file fails the run", func(t *testing.T) {
		out, err := execute(t, nil, "validate-maze", valid, invalid)

		require.Error(t, err)
		assert.Contains(t, out, "FAIL "+invalid)
		assert.Contains(t, err.Error(), "1 of 2")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, nil, "validate-maze", filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("requires an argument", func(t *testing.T) {
		_, err := execute(t, nil, "validate-maze")
		require.Error(t, err)
	})
}
