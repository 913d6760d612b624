// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// NewValidateMazeCmd creates the validate-maze subcommand.
func NewValidateMazeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-maze MAZE_FILE...",
		Short: "Validate maze definitions without a database",
		Long: `Checks each maze YAML file against the definition schema, the door
graph rules and the riddle checker scripts.
Does NOT require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines:
  labyrinth validate-maze mazes/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateMaze(cmd, args)
		},
	}
}

func runValidateMaze(cmd *cobra.Command, paths []string) error {
	failed := 0
	for _, path := range paths {
		def, err := maze.LoadDefinitionFile(path)
		if err != nil {
			failed++
			cmd.PrintErrf("FAIL %s: %v\n", path, err)
			continue
		}
		cmd.Printf("ok   %s: game %q, %d rooms, %d riddles\n", path, def.Game.ID, len(def.Rooms), len(def.Riddles))
	}
	if failed > 0 {
		return oops.Code("MAZE_VALIDATION_FAILED").
			With("failed", failed).
			Errorf("validation failed: %d of %d maze files invalid", failed, len(paths))
	}
	return nil
}
