// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import "context"

// RoomRepository reads the maze graph.
type RoomRepository interface {
	// Get retrieves a room by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Room, error)

	// ListByGame returns the rooms of a game ordered by number.
	ListByGame(ctx context.Context, gameID string) ([]*Room, error)

	// Entry returns the lowest-numbered entry room of a game.
	// Returns ErrNotFound if the game has none.
	Entry(ctx context.Context, gameID string) (*Room, error)
}

// RiddleRepository reads riddles.
type RiddleRepository interface {
	// Get retrieves a riddle by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Riddle, error)

	// ListByGame returns the riddles of a game.
	ListByGame(ctx context.Context, gameID string) ([]*Riddle, error)

	// ListByLevel returns the riddles of a level across games.
	ListByLevel(ctx context.Context, level int) ([]*Riddle, error)
}

// ProgressRepository persists player progress.
type ProgressRepository interface {
	// Get retrieves a player's progress. Returns ErrNotFound if absent.
	Get(ctx context.Context, username string) (*Progress, error)

	// Create stores new progress. Returns an error wrapping ErrDuplicate if
	// the player already has progress.
	Create(ctx context.Context, p *Progress) error

	// Update applies fn to the stored progress atomically and persists the
	// result. If fn returns an error nothing is written and the error is
	// returned unchanged. Returns ErrNotFound if absent.
	Update(ctx context.Context, username string, fn func(*Progress) error) (*Progress, error)
}

// GameWriter publishes games.
type GameWriter interface {
	// SaveGame inserts or replaces a game with all its rooms and riddles.
	SaveGame(ctx context.Context, g *Game) error
}

// MediaResolver turns media references into URLs a client can fetch.
type MediaResolver interface {
	Resolve(ctx context.Context, ref MediaRef) (string, error)
}

// Recorder observes gameplay outcomes, typically for metrics.
type Recorder interface {
	RecordMove(result string)
	RecordSolve(result string)
}

// Outcomes reported to a Recorder.
const (
	MoveResultMoved  = "moved"
	MoveResultLocked = "locked"
	MoveResultNoDoor = "no_door"

	SolveResultCorrect  = "correct"
	SolveResultWrong    = "wrong"
	SolveResultRepeated = "repeated"
)

type noopRecorder struct{}

func (noopRecorder) RecordMove(string)  {}
func (noopRecorder) RecordSolve(string) {}
