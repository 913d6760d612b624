// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package maze implements the maze graph and the progression engine.
//
// A Game is a set of Rooms joined by doors. Each door faces a compass
// Direction and is locked by a Riddle; the room on the other side has the
// opposite door locked by the same riddle. Games are authored as YAML
// Definitions and published through a GameWriter.
//
// Engine keeps each player's Progress: the current room, the solved riddles,
// score and level. Every change to a player's progress is a single
// read-modify-write through ProgressRepository.Update, so concurrent requests
// from one player cannot both apply an effect.
package maze
