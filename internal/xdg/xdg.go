// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package xdg resolves XDG Base Directory paths for Labyrinth.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "labyrinth"

// ConfigDir returns the XDG config directory for labyrinth.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for labyrinth.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// ConfigFile returns the default config file location.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// BreachedPasswordsFile returns the default location of the sorted
// leaked-password digest list.
func BreachedPasswordsFile() string {
	return filepath.Join(DataDir(), "breached-passwords.txt")
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func resolve(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}
