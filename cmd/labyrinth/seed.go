// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd(deps *Deps) *cobra.Command {
	sc := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed MAZE_FILE",
		Short: "Publish a maze definition to the store",
		Long: `Validate a maze YAML file and publish its rooms, doors and riddles.
Publishing replaces an existing game with the same ID; player progress is
kept. Running the command twice with the same file is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args[0], sc, deps)
		},
	}

	cmd.Flags().DurationVar(&sc.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().Bool("auto-migrate", true, "apply pending PostgreSQL migrations first")

	return cmd
}

func runSeed(cmd *cobra.Command, path string, sc *seedConfig, deps *Deps) error {
	def, err := maze.LoadDefinitionFile(path)
	if err != nil {
		return err
	}
	game := def.Compile()

	cfg, err := loadStoreConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, sc.timeout)
	defer cancel()

	cmd.Println("Connecting to " + cfg.Store.Backend + "...")
	backend, err := deps.BackendFactory(ctx, cfg, deps.MigratorFactory, logger)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("backend", cfg.Store.Backend).Wrap(err)
	}
	defer closeWithTimeout(logger, "store", cfg, backend.Close)

	if err := backend.Games.SaveGame(ctx, game); err != nil {
		return oops.Code("SEED_FAILED").With("game_id", game.ID).Wrap(err)
	}

	logger.Info("maze published", "game_id", game.ID, "rooms", len(game.Rooms), "riddles", len(game.Riddles))
	cmd.Printf("Published game %q (%s): %d rooms, %d riddles\n", game.ID, game.Name, len(game.Rooms), len(game.Riddles))
	return nil
}
