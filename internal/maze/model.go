// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"slices"
	"time"
)

// Coords place a room on the map grid.
type Coords struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Neighbor is a door leading out of a room.
type Neighbor struct {
	Direction    Direction `json:"direction"`
	TargetRoomID string    `json:"target_room_id"`
	RiddleID     string    `json:"riddle_id"`
}

// Room is a node of the maze graph.
type Room struct {
	ID        string     `json:"id"`
	GameID    string     `json:"game_id"`
	Number    int        `json:"number"`
	Coords    Coords     `json:"coords"`
	Entry     bool       `json:"entry"`
	Exit      bool       `json:"exit"`
	Neighbors []Neighbor `json:"neighbors"`
}

// Neighbor returns the door facing dir.
func (r *Room) Neighbor(dir Direction) (Neighbor, bool) {
	for _, n := range r.Neighbors {
		if n.Direction == dir {
			return n, true
		}
	}
	return Neighbor{}, false
}

// Gates reports whether riddleID locks one of the room's doors.
func (r *Room) Gates(riddleID string) bool {
	return slices.ContainsFunc(r.Neighbors, func(n Neighbor) bool { return n.RiddleID == riddleID })
}

// MediaRef is an opaque reference to a file attached to a riddle.
type MediaRef struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// Riddle is the puzzle locking a door.
type Riddle struct {
	ID         string
	GameID     string
	Level      int
	Task       string
	Media      []MediaRef
	Solution   string
	IgnoreCase bool
	// Checker is an optional Lua script defining check(answer, solution).
	// When set it replaces the plain comparison.
	Checker    string
	Difficulty int64
	Deduction  int64
	Credits    string
	Debriefing string
}

// Game is a published maze with its rooms and riddles.
type Game struct {
	ID      string
	Name    string
	Rooms   []*Room
	Riddles []*Riddle
}

// SolvedRiddle records when a riddle was opened and solved.
type SolvedRiddle struct {
	RiddleID  string    `json:"riddle_id"`
	StartedAt time.Time `json:"started_at"`
	SolvedAt  time.Time `json:"solved_at"`
}

// Attempt is the riddle the player last opened.
type Attempt struct {
	RiddleID  string    `json:"riddle_id"`
	StartedAt time.Time `json:"started_at"`
}

// Completion records reaching an exit room.
type Completion struct {
	GameID string    `json:"game_id"`
	At     time.Time `json:"at"`
}

// Progress is a player's mutable game state.
type Progress struct {
	Username    string
	GameID      string
	CurrentRoom string
	Solved      []SolvedRiddle
	// Balance is the sum of awards minus the sum of deductions. It may be
	// negative; Score never is.
	Balance        int64
	Level          int
	RoomsEntered   []string
	Finished       []Completion
	CurrentAttempt *Attempt
	UpdatedAt      time.Time

	// Version is the compare-and-swap token of document stores.
	Version int64
}

// NewProgress places a player in the entry room of a game.
func NewProgress(username string, entry *Room, now time.Time) *Progress {
	return &Progress{
		Username:     username,
		GameID:       entry.GameID,
		CurrentRoom:  entry.ID,
		RoomsEntered: []string{entry.ID},
		UpdatedAt:    now,
	}
}

// Score is the balance clamped at zero.
func (p *Progress) Score() int64 {
	return max(0, p.Balance)
}

// HasSolved reports whether riddleID is in the solved set.
func (p *Progress) HasSolved(riddleID string) bool {
	return p.solved(riddleID) != nil
}

func (p *Progress) solved(riddleID string) *SolvedRiddle {
	for i := range p.Solved {
		if p.Solved[i].RiddleID == riddleID {
			return &p.Solved[i]
		}
	}
	return nil
}

// HasFinished reports whether the player reached an exit of gameID.
func (p *Progress) HasFinished(gameID string) bool {
	return slices.ContainsFunc(p.Finished, func(c Completion) bool { return c.GameID == gameID })
}

// enter moves the player and records the room.
func (p *Progress) enter(room *Room, now time.Time) {
	p.CurrentRoom = room.ID
	if !slices.Contains(p.RoomsEntered, room.ID) {
		p.RoomsEntered = append(p.RoomsEntered, room.ID)
	}
	if room.Exit && !p.HasFinished(room.GameID) {
		p.Finished = append(p.Finished, Completion{GameID: room.GameID, At: now})
	}
	p.UpdatedAt = now
}

// credit adds a correctly solved riddle.
func (p *Progress) credit(r *Riddle, now time.Time) {
	started := now
	if p.CurrentAttempt != nil && p.CurrentAttempt.RiddleID == r.ID {
		started = p.CurrentAttempt.StartedAt
		p.CurrentAttempt = nil
	}
	p.Solved = append(p.Solved, SolvedRiddle{RiddleID: r.ID, StartedAt: started, SolvedAt: now})
	p.Balance += r.Difficulty
	p.Level = max(p.Level, r.Level)
	p.UpdatedAt = now
}

// penalize deducts for a wrong answer.
func (p *Progress) penalize(r *Riddle, now time.Time) {
	p.Balance -= r.Deduction
	p.UpdatedAt = now
}

// Clone returns a deep copy.
func (p *Progress) Clone() *Progress {
	c := *p
	c.Solved = slices.Clone(p.Solved)
	c.RoomsEntered = slices.Clone(p.RoomsEntered)
	c.Finished = slices.Clone(p.Finished)
	if p.CurrentAttempt != nil {
		a := *p.CurrentAttempt
		c.CurrentAttempt = &a
	}
	return &c
}
