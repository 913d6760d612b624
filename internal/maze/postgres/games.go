// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/store"
)

// GameWriter implements maze.GameWriter using PostgreSQL.
type GameWriter struct {
	pool store.Pool
}

// NewGameWriter creates a new GameWriter.
func NewGameWriter(pool store.Pool) *GameWriter {
	return &GameWriter{pool: pool}
}

// SaveGame replaces a game's rooms, doors and riddles in one transaction.
// Player progress is kept.
func (w *GameWriter) SaveGame(ctx context.Context, g *maze.Game) error {
	return store.InTx(ctx, w.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO games (id, name, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		`, g.ID, g.Name)
		if err != nil {
			return store.Classify("upsert game", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rooms WHERE game_id = $1`, g.ID); err != nil {
			return store.Classify("clear rooms", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM riddles WHERE game_id = $1`, g.ID); err != nil {
			return store.Classify("clear riddles", err)
		}

		for _, r := range g.Riddles {
			media, err := json.Marshal(mediaOrEmpty(r.Media))
			if err != nil {
				return oops.With("riddle_id", r.ID).Wrap(err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO riddles (`+riddleColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			`,
				r.ID, g.ID, r.Level, r.Task, media, r.Solution, r.IgnoreCase,
				r.Checker, r.Difficulty, r.Deduction, r.Credits, r.Debriefing,
			)
			if err != nil {
				return store.Classify("insert riddle", err)
			}
		}

		for _, room := range g.Rooms {
			_, err := tx.Exec(ctx, `
				INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, room.ID, g.ID, room.Number, room.Coords.X, room.Coords.Y, room.Entry, room.Exit)
			if err != nil {
				return store.Classify("insert room", err)
			}
		}
		for _, room := range g.Rooms {
			for _, n := range room.Neighbors {
				_, err := tx.Exec(ctx, `
					INSERT INTO room_neighbors (room_id, direction, target_room_id, riddle_id)
					VALUES ($1, $2, $3, $4)
				`, room.ID, string(n.Direction), n.TargetRoomID, n.RiddleID)
				if err != nil {
					return store.Classify("insert door", err)
				}
			}
		}
		return nil
	})
}

func mediaOrEmpty(media []maze.MediaRef) []maze.MediaRef {
	if media == nil {
		return []maze.MediaRef{}
	}
	return media
}

// Compile-time interface check.
var _ maze.GameWriter = (*GameWriter)(nil)
