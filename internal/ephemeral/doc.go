// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package ephemeral holds short-lived state with expiry: ceremony
// challenges, consumed one-time codes and attempt counters. Memory keeps it
// in process for single-node deployments; Redis shares it between nodes.
package ephemeral
