// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/store"
)

const roomColumns = `id, game_id, number, x, y, entry, exit`

// RoomRepository implements maze.RoomRepository using PostgreSQL.
type RoomRepository struct {
	pool store.Pool
}

// NewRoomRepository creates a new RoomRepository.
func NewRoomRepository(pool store.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// Get retrieves a room with its doors.
func (r *RoomRepository) Get(ctx context.Context, id string) (*maze.Room, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	return r.one(ctx, row, "get room", id)
}

// Entry returns the lowest-numbered entry room of a game.
func (r *RoomRepository) Entry(ctx context.Context, gameID string) (*maze.Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE game_id = $1 AND entry
		ORDER BY number
		LIMIT 1
	`, gameID)
	return r.one(ctx, row, "get entry room", gameID)
}

// ListByGame returns the rooms of a game ordered by number.
func (r *RoomRepository) ListByGame(ctx context.Context, gameID string) ([]*maze.Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE game_id = $1 ORDER BY number, id`, gameID)
	if err != nil {
		return nil, store.Classify("list rooms", err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*maze.Room, error) {
		return scanRoom(row)
	})
	if err != nil {
		return nil, store.Classify("scan rooms", err)
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	rows, err = r.pool.Query(ctx, `
		SELECT n.room_id, n.direction, n.target_room_id, n.riddle_id
		FROM room_neighbors n
		JOIN rooms r ON r.id = n.room_id
		WHERE r.game_id = $1
		ORDER BY n.room_id, n.direction
	`, gameID)
	if err != nil {
		return nil, store.Classify("list doors", err)
	}
	byRoom := make(map[string]*maze.Room, len(rooms))
	for _, room := range rooms {
		byRoom[room.ID] = room
	}
	_, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (struct{}, error) {
		var roomID string
		var n maze.Neighbor
		if err := row.Scan(&roomID, &n.Direction, &n.TargetRoomID, &n.RiddleID); err != nil {
			return struct{}{}, err
		}
		if room, ok := byRoom[roomID]; ok {
			room.Neighbors = append(room.Neighbors, n)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, store.Classify("scan doors", err)
	}
	for _, room := range rooms {
		sortDoors(room)
	}
	return rooms, nil
}

func (r *RoomRepository) one(ctx context.Context, row pgx.Row, op, key string) (*maze.Room, error) {
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("key", key).Wrap(maze.ErrNotFound)
	}
	if err != nil {
		return nil, store.Classify(op, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT direction, target_room_id, riddle_id
		FROM room_neighbors
		WHERE room_id = $1
	`, room.ID)
	if err != nil {
		return nil, store.Classify("list doors", err)
	}
	room.Neighbors, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (maze.Neighbor, error) {
		var n maze.Neighbor
		err := row.Scan(&n.Direction, &n.TargetRoomID, &n.RiddleID)
		return n, err
	})
	if err != nil {
		return nil, store.Classify("scan doors", err)
	}
	sortDoors(room)
	return room, nil
}

// scanRoom scans a room row. pgx.ErrNoRows is returned unchanged.
func scanRoom(row pgx.Row) (*maze.Room, error) {
	var (
		room         maze.Room
		number, x, y int32
	)
	if err := row.Scan(&room.ID, &room.GameID, &number, &x, &y, &room.Entry, &room.Exit); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	room.Number = int(number)
	room.Coords = maze.Coords{X: int(x), Y: int(y)}
	return &room, nil
}

// sortDoors orders doors clockwise from north.
func sortDoors(room *maze.Room) {
	sorted := make([]maze.Neighbor, 0, len(room.Neighbors))
	for _, dir := range maze.Directions {
		if n, ok := room.Neighbor(dir); ok {
			sorted = append(sorted, n)
		}
	}
	room.Neighbors = sorted
}

// Compile-time interface check.
var _ maze.RoomRepository = (*RoomRepository)(nil)
