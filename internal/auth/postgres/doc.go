// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package postgres provides the PostgreSQL user repository.
package postgres
