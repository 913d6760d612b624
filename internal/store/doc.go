// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package store connects to PostgreSQL and owns its schema. Repositories
// for accounts and the maze live beside their domain packages and share the
// pool, transaction and error helpers here.
package store
