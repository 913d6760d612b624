// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package mazetest provides an in-memory maze store for tests.
package mazetest

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// Store implements the maze repositories and GameWriter in memory. Values
// are copied on every read and write.
type Store struct {
	mu      sync.Mutex
	rooms   map[string]*maze.Room
	riddles map[string]*maze.Riddle

	progressMu sync.Mutex
	progress   map[string]*maze.Progress
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms:    make(map[string]*maze.Room),
		riddles:  make(map[string]*maze.Riddle),
		progress: make(map[string]*maze.Progress),
	}
}

// Rooms returns the store as a maze.RoomRepository.
func (s *Store) Rooms() maze.RoomRepository { return roomView{s} }

// Riddles returns the store as a maze.RiddleRepository.
func (s *Store) Riddles() maze.RiddleRepository { return riddleView{s} }

// SaveGame replaces the rooms and riddles of g.
func (s *Store) SaveGame(_ context.Context, g *maze.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rooms {
		if r.GameID == g.ID {
			delete(s.rooms, id)
		}
	}
	for id, r := range s.riddles {
		if r.GameID == g.ID {
			delete(s.riddles, id)
		}
	}
	for _, r := range g.Rooms {
		s.rooms[r.ID] = cloneRoom(r)
	}
	for _, r := range g.Riddles {
		s.riddles[r.ID] = cloneRiddle(r)
	}
	return nil
}

// Get implements maze.ProgressRepository.
func (s *Store) Get(_ context.Context, username string) (*maze.Progress, error) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	p, ok := s.progress[username]
	if !ok {
		return nil, maze.ErrNotFound
	}
	return p.Clone(), nil
}

// Create implements maze.ProgressRepository.
func (s *Store) Create(_ context.Context, p *maze.Progress) error {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if _, ok := s.progress[p.Username]; ok {
		return maze.ErrDuplicate
	}
	s.progress[p.Username] = p.Clone()
	return nil
}

// Update implements maze.ProgressRepository. Updates are serialized; fn must
// not call the progress methods.
func (s *Store) Update(_ context.Context, username string, fn func(*maze.Progress) error) (*maze.Progress, error) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	p, ok := s.progress[username]
	if !ok {
		return nil, maze.ErrNotFound
	}
	updated := p.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.Version++
	s.progress[username] = updated.Clone()
	return updated, nil
}

// Put stores progress as is.
func (s *Store) Put(p *maze.Progress) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.progress[p.Username] = p.Clone()
}

type roomView struct{ s *Store }

func (v roomView) Get(_ context.Context, id string) (*maze.Room, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.rooms[id]
	if !ok {
		return nil, maze.ErrNotFound
	}
	return cloneRoom(r), nil
}

func (v roomView) ListByGame(_ context.Context, gameID string) ([]*maze.Room, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*maze.Room
	for _, r := range v.s.rooms {
		if r.GameID == gameID {
			out = append(out, cloneRoom(r))
		}
	}
	slices.SortFunc(out, func(a, b *maze.Room) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

func (v roomView) Entry(ctx context.Context, gameID string) (*maze.Room, error) {
	rooms, _ := v.ListByGame(ctx, gameID)
	for _, r := range rooms {
		if r.Entry {
			return r, nil
		}
	}
	return nil, maze.ErrNotFound
}

type riddleView struct{ s *Store }

func (v riddleView) Get(_ context.Context, id string) (*maze.Riddle, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.riddles[id]
	if !ok {
		return nil, maze.ErrNotFound
	}
	return cloneRiddle(r), nil
}

func (v riddleView) ListByGame(_ context.Context, gameID string) ([]*maze.Riddle, error) {
	return v.list(func(r *maze.Riddle) bool { return r.GameID == gameID }), nil
}

func (v riddleView) ListByLevel(_ context.Context, level int) ([]*maze.Riddle, error) {
	return v.list(func(r *maze.Riddle) bool { return r.Level == level }), nil
}

func (v riddleView) list(keep func(*maze.Riddle) bool) []*maze.Riddle {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*maze.Riddle
	for _, r := range v.s.riddles {
		if keep(r) {
			out = append(out, cloneRiddle(r))
		}
	}
	slices.SortFunc(out, func(a, b *maze.Riddle) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func cloneRoom(r *maze.Room) *maze.Room {
	c := *r
	c.Neighbors = slices.Clone(r.Neighbors)
	return &c
}

func cloneRiddle(r *maze.Riddle) *maze.Riddle {
	c := *r
	c.Media = slices.Clone(r.Media)
	return &c
}
