// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/maze/mazetest"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

func TestParseDefinition_Tutorial(t *testing.T) {
	def, err := maze.ParseDefinition(mazetest.TutorialYAML)
	require.NoError(t, err)

	game := def.Compile()
	assert.Equal(t, "default", game.ID)
	assert.Equal(t, "Tutorial", game.Name)
	require.Len(t, game.Rooms, 4)
	require.Len(t, game.Riddles, 3)

	rooms := make(map[string]*maze.Room)
	for _, r := range game.Rooms {
		rooms[r.ID] = r
		assert.Equal(t, "default", r.GameID)
	}

	t.Run("opposite doors are added", func(t *testing.T) {
		back, ok := rooms["library"].Neighbor(maze.West)
		require.True(t, ok)
		assert.Equal(t, maze.Neighbor{Direction: maze.West, TargetRoomID: "hall", RiddleID: "answer"}, back)

		back, ok = rooms["tower"].Neighbor(maze.South)
		require.True(t, ok)
		assert.Equal(t, "capital", back.RiddleID)

		back, ok = rooms["cellar"].Neighbor(maze.North)
		require.True(t, ok)
		assert.Equal(t, "sevens", back.RiddleID)
	})

	t.Run("riddle fields", func(t *testing.T) {
		var capital *maze.Riddle
		for _, r := range game.Riddles {
			if r.ID == "capital" {
				capital = r
			}
		}
		require.NotNil(t, capital)
		assert.True(t, capital.IgnoreCase)
		assert.Equal(t, []maze.MediaRef{{Name: "skyline", Kind: "image", Key: "riddles/capital/skyline.jpg"}}, capital.Media)
	})

	t.Run("flags and coordinates", func(t *testing.T) {
		assert.True(t, rooms["hall"].Entry)
		assert.True(t, rooms["tower"].Exit)
		assert.Equal(t, maze.Coords{X: 1, Y: -1}, rooms["tower"].Coords)
	})
}

const baseRiddles = `
schema_version: "1.2.0"
game: {id: g, name: G}
riddles:
  - {id: r1, level: 1, task: t, solution: a, difficulty: 1}
  - {id: r2, level: 1, task: t, solution: b, difficulty: 1}
`

func TestParseDefinition_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty",
			yaml: "",
			want: "empty",
		},
		{
			name: "unknown field",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, exit: true, colour: red}
`,
			want: "schema validation failed",
		},
		{
			name: "bad direction",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, doors: [{direction: up, to: b, riddle: r1}]}
  - {id: b, number: 2, coords: {x: 0, y: 1}, exit: true}
`,
			want: "schema validation failed",
		},
		{
			name: "unsupported schema version",
			yaml: strings.Replace(baseRiddles, `"1.2.0"`, `"2.0.0"`, 1) + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, exit: true}
`,
			want: "unsupported schema version",
		},
		{
			name: "duplicate direction",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, doors: [{direction: e, to: b, riddle: r1}, {direction: e, to: c, riddle: r2}]}
  - {id: b, number: 2, coords: {x: 1, y: 0}, exit: true}
  - {id: c, number: 3, coords: {x: 2, y: 0}}
`,
			want: "two doors facing east",
		},
		{
			name: "unknown riddle",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, doors: [{direction: e, to: b, riddle: r9}]}
  - {id: b, number: 2, coords: {x: 1, y: 0}, exit: true}
`,
			want: "unknown riddle",
		},
		{
			name: "unknown room",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, exit: true, doors: [{direction: e, to: z, riddle: r1}]}
`,
			want: "unknown room",
		},
		{
			name: "mismatched opposite door",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, doors: [{direction: e, to: b, riddle: r1}]}
  - {id: b, number: 2, coords: {x: 1, y: 0}, exit: true, doors: [{direction: w, to: a, riddle: r2}]}
`,
			want: "does not match",
		},
		{
			name: "no entry",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, exit: true}
`,
			want: "no entry room",
		},
		{
			name: "exit unreachable",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, doors: [{direction: e, to: b, riddle: r1}]}
  - {id: b, number: 2, coords: {x: 1, y: 0}}
  - {id: c, number: 3, coords: {x: 5, y: 5}, exit: true}
`,
			want: "cannot reach an exit",
		},
		{
			name: "duplicate room",
			yaml: baseRiddles + `
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, exit: true}
  - {id: a, number: 2, coords: {x: 1, y: 0}}
`,
			want: "duplicate room id",
		},
		{
			name: "riddle without solution",
			yaml: `
schema_version: "1.0.0"
game: {id: g, name: G}
riddles:
  - {id: r1, level: 1, task: t, difficulty: 1}
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, exit: true}
`,
			want: "needs a solution or a checker",
		},
		{
			name: "checker syntax error",
			yaml: `
schema_version: "1.0.0"
game: {id: g, name: G}
riddles:
  - {id: r1, level: 1, task: t, difficulty: 1, checker: "function check("}
rooms:
  - {id: a, number: 1, coords: {x: 0, y: 0}, entry: true, exit: true}
`,
			want: "r1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := maze.ParseDefinition([]byte(tt.yaml))
			require.Error(t, err)
			errutil.AssertErrorKind(t, err, errutil.KindValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maze.yaml")
	require.NoError(t, os.WriteFile(path, mazetest.TutorialYAML, 0o600))

	def, err := maze.LoadDefinitionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "default", def.Game.ID)

	missing := filepath.Join(filepath.Dir(path), "missing.yaml")
	_, err = maze.LoadDefinitionFile(missing)
	errutil.AssertErrorCode(t, err, maze.CodeInvalidDefinition)
	errutil.AssertErrorContext(t, err, "path", missing)
}

func TestGenerateSchema(t *testing.T) {
	data, err := maze.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, maze.DefinitionSchemaID, schema["$id"])
	assert.Contains(t, schema["required"], "schema_version")
	assert.Contains(t, schema["required"], "rooms")
}
