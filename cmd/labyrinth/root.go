// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/labyrinth-game/labyrinth/internal/config"
	"github.com/labyrinth-game/labyrinth/internal/logging"
)

// serviceName tags every log line.
const serviceName = "labyrinth"

// NewRootCmd creates the root command. deps may be nil.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "labyrinth",
		Short: "Labyrinth - a puzzle maze game server",
		Long: `Labyrinth serves a maze of rooms whose doors are locked by riddles,
with password, TOTP and WebAuthn sign-in.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/labyrinth/config.yaml)")
	cmd.PersistentFlags().String("log-format", "", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("store", "", "store backend (postgres or mongo)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL")

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSeedCmd(deps))
	cmd.AddCommand(NewValidateMazeCmd())
	cmd.AddCommand(NewPromoteCmd(deps))
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return readConfig(cmd, (*config.Config).Validate)
}

// loadStoreConfig is loadConfig for commands that only touch the store.
func loadStoreConfig(cmd *cobra.Command) (*config.Config, error) {
	return readConfig(cmd, (*config.Config).ValidateStore)
}

func readConfig(cmd *cobra.Command, validate func(*config.Config) error) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.LoadOptions{File: path, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default logger for cfg.
func setupLogging(cfg *config.Config) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   logging.ParseLevel(cfg.Log.Level),
	})
}
