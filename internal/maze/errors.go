// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"errors"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by ProgressRepository.Create when progress exists.
var ErrDuplicate = errors.New("duplicate")

// Error codes returned by this package.
const (
	CodeInvalidDirection  = "MAZE_INVALID_DIRECTION"
	CodeInvalidDefinition = "MAZE_INVALID_DEFINITION"
	CodeInvalidLevel      = "MAZE_INVALID_LEVEL"

	CodeNoDoor            = "MAZE_NO_DOOR"
	CodeRoomNotFound      = "MAZE_ROOM_NOT_FOUND"
	CodeRiddleNotFound    = "MAZE_RIDDLE_NOT_FOUND"
	CodeGameNotFound      = "MAZE_GAME_NOT_FOUND"
	CodeRiddleUnavailable = "MAZE_RIDDLE_UNAVAILABLE"
	CodeNotSolved         = "MAZE_RIDDLE_NOT_SOLVED"

	CodeBrokenDoor       = "MAZE_BROKEN_DOOR"
	CodeCheckerFailed    = "MAZE_CHECKER_FAILED"
	CodeStoreUnavailable = "MAZE_STORE_UNAVAILABLE"
	CodeInternal         = "MAZE_INTERNAL"
)

// errNoChange aborts a progress update without writing.
var errNoChange = errors.New("no change")

func errNoDoor(dir Direction) error {
	return errutil.NotFound(CodeNoDoor).With("direction", string(dir)).Errorf("there is no door to the %s", dir.Name())
}

func errRiddleNotFound(id string) error {
	return errutil.NotFound(CodeRiddleNotFound).With("riddle_id", id).Errorf("riddle not found")
}

func errRiddleUnavailable(id string) error {
	return errutil.Authorization(CodeRiddleUnavailable).With("riddle_id", id).
		Errorf("riddle is not reachable from the current room")
}

// storeError classifies an unexpected repository error.
func storeError(op string, err error) error {
	if errutil.IsRetryable(err) {
		return errutil.Transient(CodeStoreUnavailable).With("operation", op).Wrap(err)
	}
	return oops.Code(CodeInternal).With("operation", op).Wrap(err)
}
