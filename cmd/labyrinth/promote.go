// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/mail"
)

// Default timeout for the promote command.
const defaultPromoteTimeout = 15 * time.Second

// NewPromoteCmd creates the promote subcommand.
func NewPromoteCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote USERNAME ROLE",
		Short: "Set the role of a user",
		Long: `Assign ROLE (user, designer or admin) to USERNAME directly in the
store. Unlike the admin API route this may also lower a role, which makes it
the way to bootstrap the first administrator.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromote(cmd, args[0], args[1], deps)
		},
	}
	cmd.Flags().Duration("timeout", defaultPromoteTimeout, "timeout for database operations")
	return cmd
}

func runPromote(cmd *cobra.Command, username, roleName string, deps *Deps) error {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	backend, err := deps.BackendFactory(ctx, cfg, deps.MigratorFactory, logger)
	if err != nil {
		return err
	}
	defer closeWithTimeout(logger, "store", cfg, backend.Close)

	eph := deps.EphemeralFactory(cfg)
	defer func() { _ = eph.Close() }() //nolint:errcheck // nothing to report on exit

	mailer := mail.NewAsync(mail.NewLogSender(logger), mail.AsyncOptions{Logger: logger})
	defer closeWithTimeout(logger, "mailer", cfg, mailer.Close)

	mgr, _, err := newManager(cfg, accountDeps{
		backend:   backend,
		ephemeral: eph,
		mailer:    mailer,
		logger:    logger.With("component", "auth"),
	})
	if err != nil {
		return err
	}

	user, err := mgr.AssignRole(ctx, username, role)
	if err != nil {
		return err
	}
	cmd.Printf("User %s is now %s\n", user.Username, user.Role)
	return nil
}
