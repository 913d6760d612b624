// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package postgres provides PostgreSQL implementations of the maze
// repositories.
package postgres
