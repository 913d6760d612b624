// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"context"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// MoveResult is the outcome of Go. Room is nil when the door is locked.
type MoveResult struct {
	Room      *Room
	Locked    bool
	Completed bool
	Progress  *Progress
}

// Go moves the player through the door facing dir. A door whose riddle is
// unsolved yields a locked result and leaves the player where they are.
func (e *Engine) Go(ctx context.Context, username string, dir Direction) (*MoveResult, error) {
	if !dir.Valid() {
		return nil, errutil.Validation(CodeInvalidDirection).With("direction", string(dir)).
			Errorf("direction must be one of n, e, s, w")
	}

	var (
		target *Room
		locked bool
	)
	p, err := e.update(ctx, username, "move", func(p *Progress) error {
		target, locked = nil, false
		here, err := e.room(ctx, p.CurrentRoom)
		if err != nil {
			return err
		}
		door, ok := here.Neighbor(dir)
		if !ok {
			return errNoDoor(dir)
		}
		if !p.HasSolved(door.RiddleID) {
			locked = true
			return errNoChange
		}
		target, err = e.roomBehind(ctx, here, door)
		if err != nil {
			return err
		}
		p.enter(target, e.now())
		return nil
	})
	if err != nil {
		if errutil.CodeOf(err) == CodeNoDoor {
			e.recorder.RecordMove(MoveResultNoDoor)
		}
		return nil, err
	}
	if locked {
		e.recorder.RecordMove(MoveResultLocked)
		return &MoveResult{Locked: true, Progress: p}, nil
	}

	e.recorder.RecordMove(MoveResultMoved)
	e.logger.DebugContext(ctx, "player moved", "username", username, "direction", string(dir), "room_id", target.ID)
	return &MoveResult{Room: target, Completed: target.Exit, Progress: p}, nil
}

// roomBehind resolves the room on the other side of a door: the target room
// must have the opposite door locked by the same riddle.
func (e *Engine) roomBehind(ctx context.Context, here *Room, door Neighbor) (*Room, error) {
	target, err := e.room(ctx, door.TargetRoomID)
	if err != nil {
		return nil, err
	}
	back, ok := target.Neighbor(door.Direction.Opposite())
	if !ok || back.RiddleID != door.RiddleID || back.TargetRoomID != here.ID {
		return nil, oops.Code(CodeBrokenDoor).
			With("room_id", here.ID).
			With("direction", string(door.Direction)).
			Errorf("door has no matching door on the other side")
	}
	return target, nil
}

// DoorInfo describes a door of the current room.
type DoorInfo struct {
	Direction Direction `json:"direction"`
	RiddleID  string    `json:"riddle_id"`
	Solved    bool      `json:"solved"`
}

// DoorInfo returns the riddle locking the door facing dir.
func (e *Engine) DoorInfo(ctx context.Context, username string, dir Direction) (*DoorInfo, error) {
	p, here, err := e.CurrentRoom(ctx, username)
	if err != nil {
		return nil, err
	}
	door, ok := here.Neighbor(dir)
	if !ok {
		return nil, errNoDoor(dir)
	}
	return &DoorInfo{Direction: dir, RiddleID: door.RiddleID, Solved: p.HasSolved(door.RiddleID)}, nil
}

// EnterResult is the outcome of EnterDoor.
type EnterResult struct {
	Solve *SolveResult
	Move  *MoveResult
}

// EnterDoor answers the riddle locking the door facing dir and walks through
// it when the answer is right. Scoring and the move are one progress update.
func (e *Engine) EnterDoor(ctx context.Context, username string, dir Direction, answer string) (*EnterResult, error) {
	if !dir.Valid() {
		return nil, errutil.Validation(CodeInvalidDirection).With("direction", string(dir)).
			Errorf("direction must be one of n, e, s, w")
	}

	// Answers are checked once per riddle even when the store retries fn.
	checked := map[string]bool{}
	var (
		r        *Riddle
		repeated bool
		correct  bool
		target   *Room
	)
	p, err := e.update(ctx, username, "enter door", func(p *Progress) error {
		r, repeated, correct, target = nil, false, false, nil
		here, err := e.room(ctx, p.CurrentRoom)
		if err != nil {
			return err
		}
		door, ok := here.Neighbor(dir)
		if !ok {
			return errNoDoor(dir)
		}
		if r, err = e.riddle(ctx, door.RiddleID); err != nil {
			return err
		}

		repeated = p.HasSolved(r.ID)
		if !repeated {
			right, seen := checked[r.ID]
			if !seen {
				if right, err = e.checker.Check(ctx, r, answer); err != nil {
					return err
				}
				checked[r.ID] = right
			}
			correct = right
			if !correct {
				p.penalize(r, e.now())
				return nil
			}
			p.credit(r, e.now())
		}

		if target, err = e.roomBehind(ctx, here, door); err != nil {
			return err
		}
		p.enter(target, e.now())
		return nil
	})
	if err != nil {
		if errutil.CodeOf(err) == CodeNoDoor {
			e.recorder.RecordMove(MoveResultNoDoor)
		}
		return nil, err
	}

	solve := &SolveResult{RiddleID: r.ID, Solved: repeated || correct, Score: p.Score(), Level: p.Level}
	switch {
	case repeated:
		e.recorder.RecordSolve(SolveResultRepeated)
	case correct:
		e.recorder.RecordSolve(SolveResultCorrect)
		e.logger.InfoContext(ctx, "riddle solved", "username", username, "riddle_id", r.ID, "score", p.Score())
	default:
		e.recorder.RecordSolve(SolveResultWrong)
		return &EnterResult{Solve: solve}, nil
	}

	e.recorder.RecordMove(MoveResultMoved)
	e.logger.DebugContext(ctx, "player moved", "username", username, "direction", string(dir), "room_id", target.ID)
	return &EnterResult{
		Solve: solve,
		Move:  &MoveResult{Room: target, Completed: target.Exit, Progress: p},
	}, nil
}

// MediaView is a resolved media reference.
type MediaView struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// RiddleView is what a player sees of a riddle.
type RiddleView struct {
	ID         string      `json:"id"`
	Level      int         `json:"level"`
	Difficulty int64       `json:"difficulty"`
	Deduction  int64       `json:"deduction"`
	IgnoreCase bool        `json:"ignore_case"`
	Task       string      `json:"task"`
	Media      []MediaView `json:"media"`
	Credits    string      `json:"credits"`
	Solved     bool        `json:"solved"`
}

// Riddle shows a riddle locking a door of the current room, or one already
// solved, and records when the player first opened it.
func (e *Engine) Riddle(ctx context.Context, username, riddleID string) (*RiddleView, error) {
	r, err := e.riddle(ctx, riddleID)
	if err != nil {
		return nil, err
	}

	var solved bool
	_, err = e.update(ctx, username, "open riddle", func(p *Progress) error {
		solved = p.HasSolved(r.ID)
		if solved {
			return errNoChange
		}
		if err := e.requireAccess(ctx, p, r.ID); err != nil {
			return err
		}
		if p.CurrentAttempt != nil && p.CurrentAttempt.RiddleID == r.ID {
			return errNoChange
		}
		p.CurrentAttempt = &Attempt{RiddleID: r.ID, StartedAt: e.now()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := &RiddleView{
		ID:         r.ID,
		Level:      r.Level,
		Difficulty: r.Difficulty,
		Deduction:  r.Deduction,
		IgnoreCase: r.IgnoreCase,
		Task:       r.Task,
		Media:      make([]MediaView, 0, len(r.Media)),
		Credits:    r.Credits,
		Solved:     solved,
	}
	for _, ref := range r.Media {
		url, err := e.resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		view.Media = append(view.Media, MediaView{Name: ref.Name, Kind: ref.Kind, URL: url})
	}
	return view, nil
}

func (e *Engine) resolve(ctx context.Context, ref MediaRef) (string, error) {
	if e.media == nil {
		return ref.Key, nil
	}
	url, err := e.media.Resolve(ctx, ref)
	if err != nil {
		return "", oops.Code(CodeInternal).With("media_key", ref.Key).Wrap(err)
	}
	return url, nil
}

// requireAccess allows riddles locking a door of the current room.
func (e *Engine) requireAccess(ctx context.Context, p *Progress, riddleID string) error {
	here, err := e.room(ctx, p.CurrentRoom)
	if err != nil {
		return err
	}
	if !here.Gates(riddleID) {
		return errRiddleUnavailable(riddleID)
	}
	return nil
}

// SolveResult is the outcome of Solve.
type SolveResult struct {
	RiddleID string `json:"riddle_id"`
	Solved   bool   `json:"solved"`
	Score    int64  `json:"score"`
	Level    int    `json:"level"`
}

// Solve checks an answer. A riddle already solved succeeds without changing
// the score. A correct answer adds the riddle's difficulty to the balance; a
// wrong one deducts its penalty. The reported score is never negative.
func (e *Engine) Solve(ctx context.Context, username, riddleID, answer string) (*SolveResult, error) {
	r, err := e.riddle(ctx, riddleID)
	if err != nil {
		return nil, err
	}
	correct, err := e.checker.Check(ctx, r, answer)
	if err != nil {
		return nil, err
	}

	var repeated bool
	p, err := e.update(ctx, username, "solve riddle", func(p *Progress) error {
		repeated = p.HasSolved(r.ID)
		if repeated {
			return errNoChange
		}
		if err := e.requireAccess(ctx, p, r.ID); err != nil {
			return err
		}
		if correct {
			p.credit(r, e.now())
		} else {
			p.penalize(r, e.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case repeated:
		e.recorder.RecordSolve(SolveResultRepeated)
	case correct:
		e.recorder.RecordSolve(SolveResultCorrect)
		e.logger.InfoContext(ctx, "riddle solved", "username", username, "riddle_id", r.ID, "score", p.Score())
	default:
		e.recorder.RecordSolve(SolveResultWrong)
	}
	return &SolveResult{RiddleID: r.ID, Solved: repeated || correct, Score: p.Score(), Level: p.Level}, nil
}

// Debriefing is revealed after a riddle is solved.
type Debriefing struct {
	RiddleID   string `json:"riddle_id"`
	Debriefing string `json:"debriefing"`
	Credits    string `json:"credits"`
}

// Debriefing returns the explanation of a solved riddle.
func (e *Engine) Debriefing(ctx context.Context, username, riddleID string) (*Debriefing, error) {
	r, err := e.riddle(ctx, riddleID)
	if err != nil {
		return nil, err
	}
	p, err := e.Progress(ctx, username)
	if err != nil {
		return nil, err
	}
	if !p.HasSolved(r.ID) {
		return nil, errutil.Authorization(CodeNotSolved).With("riddle_id", r.ID).Errorf("riddle has not been solved")
	}
	return &Debriefing{RiddleID: r.ID, Debriefing: r.Debriefing, Credits: r.Credits}, nil
}
