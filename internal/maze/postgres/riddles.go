// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/store"
)

const riddleColumns = `id, game_id, level, task, media, solution, ignore_case,
	checker, difficulty, deduction, credits, debriefing`

// RiddleRepository implements maze.RiddleRepository using PostgreSQL.
type RiddleRepository struct {
	pool store.Pool
}

// NewRiddleRepository creates a new RiddleRepository.
func NewRiddleRepository(pool store.Pool) *RiddleRepository {
	return &RiddleRepository{pool: pool}
}

// Get retrieves a riddle by ID.
func (r *RiddleRepository) Get(ctx context.Context, id string) (*maze.Riddle, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+riddleColumns+` FROM riddles WHERE id = $1`, id)
	riddle, err := scanRiddle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("riddle_id", id).Wrap(maze.ErrNotFound)
	}
	if err != nil {
		return nil, store.Classify("get riddle", err)
	}
	return riddle, nil
}

// ListByGame returns the riddles of a game ordered by level and ID.
func (r *RiddleRepository) ListByGame(ctx context.Context, gameID string) ([]*maze.Riddle, error) {
	return r.list(ctx, "list riddles by game",
		`SELECT `+riddleColumns+` FROM riddles WHERE game_id = $1 ORDER BY level, id`, gameID)
}

// ListByLevel returns the riddles of a level across games.
func (r *RiddleRepository) ListByLevel(ctx context.Context, level int) ([]*maze.Riddle, error) {
	return r.list(ctx, "list riddles by level",
		`SELECT `+riddleColumns+` FROM riddles WHERE level = $1 ORDER BY game_id, id`, level)
}

func (r *RiddleRepository) list(ctx context.Context, op, sql string, arg any) ([]*maze.Riddle, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, store.Classify(op, err)
	}
	riddles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*maze.Riddle, error) {
		return scanRiddle(row)
	})
	if err != nil {
		return nil, store.Classify(op, err)
	}
	return riddles, nil
}

// scanRiddle scans a riddle row. pgx.ErrNoRows is returned unchanged.
func scanRiddle(row pgx.Row) (*maze.Riddle, error) {
	var (
		r     maze.Riddle
		level int32
		media []byte
	)
	err := row.Scan(
		&r.ID,
		&r.GameID,
		&level,
		&r.Task,
		&media,
		&r.Solution,
		&r.IgnoreCase,
		&r.Checker,
		&r.Difficulty,
		&r.Deduction,
		&r.Credits,
		&r.Debriefing,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	r.Level = int(level)
	if len(media) > 0 {
		if err := json.Unmarshal(media, &r.Media); err != nil {
			return nil, oops.Code(maze.CodeInternal).With("riddle_id", r.ID).Wrap(err)
		}
	}
	return &r, nil
}

// Compile-time interface check.
var _ maze.RiddleRepository = (*RiddleRepository)(nil)
