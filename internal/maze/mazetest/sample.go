// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mazetest

import (
	"context"
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// TutorialYAML is a four-room maze. The hall (entry) leads east to the
// library through riddle "answer" (solution 42, difficulty 10, deduction 2)
// and south to the cellar through riddle "sevens" (Lua checker). The library
// leads north to the tower (exit) through riddle "capital" (Paris, any case).
//
//go:embed tutorial.yaml
var TutorialYAML []byte

// TutorialGameID is the game ID of TutorialYAML.
const TutorialGameID = "default"

// Tutorial compiles TutorialYAML.
func Tutorial(t testing.TB) *maze.Game {
	t.Helper()
	def, err := maze.ParseDefinition(TutorialYAML)
	require.NoError(t, err)
	return def.Compile()
}

// Seed publishes the tutorial maze through w.
func Seed(t testing.TB, w maze.GameWriter) *maze.Game {
	t.Helper()
	game := Tutorial(t)
	require.NoError(t, w.SaveGame(context.Background(), game))
	return game
}
