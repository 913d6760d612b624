// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// EngineDeps are the collaborators of an Engine. Checker, Media, Recorder,
// Logger, Retry and Now are optional.
type EngineDeps struct {
	Rooms    RoomRepository
	Riddles  RiddleRepository
	Progress ProgressRepository
	Checker  AnswerChecker
	Media    MediaResolver
	Recorder Recorder
	Logger   *slog.Logger

	// DefaultGameID is the game new players start in.
	DefaultGameID string
	// Retry bounds retries of transient read failures.
	Retry errutil.RetryPolicy
	Now   func() time.Time
}

// Engine moves players through the maze and scores their answers.
type Engine struct {
	rooms    RoomRepository
	riddles  RiddleRepository
	progress ProgressRepository
	checker  AnswerChecker
	media    MediaResolver
	recorder Recorder
	logger   *slog.Logger

	gameID string
	retry  errutil.RetryPolicy
	now    func() time.Time
}

// NewEngine validates deps and creates an Engine.
func NewEngine(deps EngineDeps) (*Engine, error) {
	switch {
	case deps.Rooms == nil:
		return nil, oops.Code("MAZE_ENGINE_CONFIG").Errorf("room repository is required")
	case deps.Riddles == nil:
		return nil, oops.Code("MAZE_ENGINE_CONFIG").Errorf("riddle repository is required")
	case deps.Progress == nil:
		return nil, oops.Code("MAZE_ENGINE_CONFIG").Errorf("progress repository is required")
	case deps.DefaultGameID == "":
		return nil, oops.Code("MAZE_ENGINE_CONFIG").Errorf("default game id is required")
	}

	e := &Engine{
		rooms:    deps.Rooms,
		riddles:  deps.Riddles,
		progress: deps.Progress,
		checker:  deps.Checker,
		media:    deps.Media,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		gameID:   deps.DefaultGameID,
		retry:    deps.Retry,
		now:      deps.Now,
	}
	if e.checker == nil {
		e.checker = NewScriptChecker(DefaultCheckTimeout)
	}
	if e.recorder == nil {
		e.recorder = noopRecorder{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.retry.MaxAttempts == 0 {
		e.retry = errutil.DefaultRetryPolicy
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// StartGame places a player in the entry room of the default game. It does
// nothing if the player already has progress.
func (e *Engine) StartGame(ctx context.Context, username string) error {
	entry, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) (*Room, error) {
		return e.rooms.Entry(ctx, e.gameID)
	})
	if errors.Is(err, ErrNotFound) {
		return errutil.NotFound(CodeGameNotFound).With("game_id", e.gameID).Errorf("game has no entry room")
	}
	if err != nil {
		return storeError("find entry room", err)
	}

	err = e.progress.Create(ctx, NewProgress(username, entry, e.now()))
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return storeError("create progress", err)
	}
	if err == nil {
		e.logger.InfoContext(ctx, "player started game", "username", username, "game_id", entry.GameID, "room_id", entry.ID)
	}
	return nil
}

// Progress returns the player's progress, starting the game on first use.
func (e *Engine) Progress(ctx context.Context, username string) (*Progress, error) {
	p, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) (*Progress, error) {
		return e.progress.Get(ctx, username)
	})
	if errors.Is(err, ErrNotFound) {
		if err := e.StartGame(ctx, username); err != nil {
			return nil, err
		}
		p, err = e.progress.Get(ctx, username)
	}
	if err != nil {
		return nil, storeError("get progress", err)
	}
	return p, nil
}

// CurrentRoom returns the player's progress and the room they stand in.
func (e *Engine) CurrentRoom(ctx context.Context, username string) (*Progress, *Room, error) {
	p, err := e.Progress(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	room, err := e.room(ctx, p.CurrentRoom)
	if err != nil {
		return nil, nil, err
	}
	return p, room, nil
}

// update applies fn through the progress repository, starting the game on
// first use. Errors from fn are returned unchanged, except errNoChange which
// yields the stored progress.
func (e *Engine) update(ctx context.Context, username, op string, fn func(*Progress) error) (*Progress, error) {
	var fnErr error
	apply := func(p *Progress) error {
		fnErr = fn(p)
		return fnErr
	}
	p, err := e.progress.Update(ctx, username, apply)
	if errors.Is(err, ErrNotFound) && fnErr == nil {
		if err := e.StartGame(ctx, username); err != nil {
			return nil, err
		}
		p, err = e.progress.Update(ctx, username, apply)
	}
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, errNoChange):
		return e.Progress(ctx, username)
	case fnErr != nil && errors.Is(err, fnErr):
		return nil, err
	default:
		return nil, storeError(op, err)
	}
}

func (e *Engine) room(ctx context.Context, id string) (*Room, error) {
	room, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) (*Room, error) {
		return e.rooms.Get(ctx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, errutil.NotFound(CodeRoomNotFound).With("room_id", id).Errorf("room not found")
	}
	if err != nil {
		return nil, storeError("get room", err)
	}
	return room, nil
}

func (e *Engine) riddle(ctx context.Context, id string) (*Riddle, error) {
	r, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) (*Riddle, error) {
		return e.riddles.Get(ctx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, errRiddleNotFound(id)
	}
	if err != nil {
		return nil, storeError("get riddle", err)
	}
	return r, nil
}

// Stats summarizes a game.
type Stats struct {
	GameID     string `json:"game_id"`
	NumRooms   int    `json:"num_rooms"`
	NumRiddles int    `json:"num_riddles"`
	MaxScore   int64  `json:"max_score"`
}

// Stats counts the rooms and door riddles of a game and the score earned by
// solving all of them.
func (e *Engine) Stats(ctx context.Context, gameID string) (*Stats, error) {
	rooms, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) ([]*Room, error) {
		return e.rooms.ListByGame(ctx, gameID)
	})
	if err != nil {
		return nil, storeError("list rooms", err)
	}
	if len(rooms) == 0 {
		return nil, errutil.NotFound(CodeGameNotFound).With("game_id", gameID).Errorf("game not found")
	}
	riddles, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) ([]*Riddle, error) {
		return e.riddles.ListByGame(ctx, gameID)
	})
	if err != nil {
		return nil, storeError("list riddles", err)
	}

	difficulty := make(map[string]int64, len(riddles))
	for _, r := range riddles {
		difficulty[r.ID] = r.Difficulty
	}
	gating := make(map[string]struct{})
	for _, room := range rooms {
		for _, n := range room.Neighbors {
			gating[n.RiddleID] = struct{}{}
		}
	}

	stats := &Stats{GameID: gameID, NumRooms: len(rooms), NumRiddles: len(gating)}
	for id := range gating {
		stats.MaxScore += difficulty[id]
	}
	return stats, nil
}

// RiddlesByLevel lists the riddles of a level for designers.
func (e *Engine) RiddlesByLevel(ctx context.Context, level int) ([]*Riddle, error) {
	if level < 0 {
		return nil, errutil.Validation(CodeInvalidLevel).With("level", level).Errorf("level must not be negative")
	}
	riddles, err := errutil.RetryValue(ctx, e.retry, func(ctx context.Context) ([]*Riddle, error) {
		return e.riddles.ListByLevel(ctx, level)
	})
	if err != nil {
		return nil, storeError("list riddles by level", err)
	}
	return riddles, nil
}
