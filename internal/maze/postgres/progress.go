// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/store"
)

const progressColumns = `username, game_id, current_room, balance, level,
	rooms_entered, finished, attempt_riddle_id, attempt_started_at, updated_at, version`

// ProgressRepository implements maze.ProgressRepository using PostgreSQL.
// Solved riddles are kept in their own table and only ever appended.
type ProgressRepository struct {
	pool store.Pool
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool store.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Get retrieves a player's progress.
func (r *ProgressRepository) Get(ctx context.Context, username string) (*maze.Progress, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+progressColumns+` FROM progress WHERE username = $1`, username)
	p, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(maze.ErrNotFound)
	}
	if err != nil {
		return nil, store.Classify("get progress", err)
	}
	if p.Solved, err = loadSolved(ctx, r.pool, username); err != nil {
		return nil, err
	}
	return p, nil
}

// Create stores new progress.
func (r *ProgressRepository) Create(ctx context.Context, p *maze.Progress) error {
	return store.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		finished, attemptID, attemptStarted, err := encodeProgress(p)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO progress (`+progressColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			p.Username, p.GameID, p.CurrentRoom, p.Balance, p.Level,
			roomsOrEmpty(p.RoomsEntered), finished, attemptID, attemptStarted, p.UpdatedAt, p.Version,
		)
		if err != nil {
			if _, dup := store.UniqueViolation(err); dup {
				return oops.With("username", p.Username).Wrap(maze.ErrDuplicate)
			}
			return store.Classify("insert progress", err)
		}
		return insertSolved(ctx, tx, p.Username, p.Solved)
	})
}

// Update locks the progress row, applies fn and writes the result back in
// the same transaction.
func (r *ProgressRepository) Update(ctx context.Context, username string, fn func(*maze.Progress) error) (*maze.Progress, error) {
	var updated *maze.Progress
	err := store.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+progressColumns+` FROM progress WHERE username = $1 FOR UPDATE`, username)
		p, err := scanProgress(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.With("username", username).Wrap(maze.ErrNotFound)
		}
		if err != nil {
			return store.Classify("lock progress", err)
		}
		if p.Solved, err = loadSolved(ctx, tx, username); err != nil {
			return err
		}
		known := make(map[string]bool, len(p.Solved))
		for _, s := range p.Solved {
			known[s.RiddleID] = true
		}

		if err := fn(p); err != nil {
			return err
		}
		p.Version++

		finished, attemptID, attemptStarted, err := encodeProgress(p)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE progress SET
				game_id = $2,
				current_room = $3,
				balance = $4,
				level = $5,
				rooms_entered = $6,
				finished = $7,
				attempt_riddle_id = $8,
				attempt_started_at = $9,
				updated_at = $10,
				version = $11
			WHERE username = $1
		`,
			username, p.GameID, p.CurrentRoom, p.Balance, p.Level,
			roomsOrEmpty(p.RoomsEntered), finished, attemptID, attemptStarted, p.UpdatedAt, p.Version,
		)
		if err != nil {
			return store.Classify("update progress", err)
		}

		var added []maze.SolvedRiddle
		for _, s := range p.Solved {
			if !known[s.RiddleID] {
				added = append(added, s)
			}
		}
		if err := insertSolved(ctx, tx, username, added); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func insertSolved(ctx context.Context, tx pgx.Tx, username string, solved []maze.SolvedRiddle) error {
	for _, s := range solved {
		_, err := tx.Exec(ctx, `
			INSERT INTO solved_riddles (username, riddle_id, started_at, solved_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (username, riddle_id) DO NOTHING
		`, username, s.RiddleID, s.StartedAt, s.SolvedAt)
		if err != nil {
			return store.Classify("insert solved riddle", err)
		}
	}
	return nil
}

func loadSolved(ctx context.Context, q store.Querier, username string) ([]maze.SolvedRiddle, error) {
	rows, err := q.Query(ctx, `
		SELECT riddle_id, started_at, solved_at
		FROM solved_riddles
		WHERE username = $1
		ORDER BY solved_at, riddle_id
	`, username)
	if err != nil {
		return nil, store.Classify("list solved riddles", err)
	}
	solved, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (maze.SolvedRiddle, error) {
		var s maze.SolvedRiddle
		err := row.Scan(&s.RiddleID, &s.StartedAt, &s.SolvedAt)
		return s, err
	})
	if err != nil {
		return nil, store.Classify("scan solved riddles", err)
	}
	return solved, nil
}

// scanProgress scans a progress row. pgx.ErrNoRows is returned unchanged.
func scanProgress(row pgx.Row) (*maze.Progress, error) {
	var (
		p              maze.Progress
		level          int32
		finished       []byte
		attemptID      *string
		attemptStarted *time.Time
	)
	err := row.Scan(
		&p.Username,
		&p.GameID,
		&p.CurrentRoom,
		&p.Balance,
		&level,
		&p.RoomsEntered,
		&finished,
		&attemptID,
		&attemptStarted,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	p.Level = int(level)
	if len(finished) > 0 {
		if err := json.Unmarshal(finished, &p.Finished); err != nil {
			return nil, oops.Code(maze.CodeInternal).With("username", p.Username).Wrap(err)
		}
	}
	if attemptID != nil && attemptStarted != nil {
		p.CurrentAttempt = &maze.Attempt{RiddleID: *attemptID, StartedAt: *attemptStarted}
	}
	return &p, nil
}

func encodeProgress(p *maze.Progress) (finished []byte, attemptID *string, attemptStarted *time.Time, err error) {
	completions := p.Finished
	if completions == nil {
		completions = []maze.Completion{}
	}
	finished, err = json.Marshal(completions)
	if err != nil {
		return nil, nil, nil, oops.With("operation", "marshal completions").Wrap(err)
	}
	if a := p.CurrentAttempt; a != nil {
		attemptID, attemptStarted = &a.RiddleID, &a.StartedAt
	}
	return finished, attemptID, attemptStarted, nil
}

func roomsOrEmpty(rooms []string) []string {
	if rooms == nil {
		return []string{}
	}
	return rooms
}

// Compile-time interface check.
var _ maze.ProgressRepository = (*ProgressRepository)(nil)
