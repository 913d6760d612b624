// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mongostore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// progressField is the user document field holding game progress.
const progressField = "progress"

type solvedDoc struct {
	RiddleID  string    `bson:"riddle_id"`
	StartedAt time.Time `bson:"started_at"`
	SolvedAt  time.Time `bson:"solved_at"`
}

type attemptDoc struct {
	RiddleID  string    `bson:"riddle_id"`
	StartedAt time.Time `bson:"started_at"`
}

type completionDoc struct {
	GameID string    `bson:"game_id"`
	At     time.Time `bson:"at"`
}

type progressDoc struct {
	GameID         string          `bson:"game_id"`
	CurrentRoom    string          `bson:"current_room"`
	Solved         []solvedDoc     `bson:"solved"`
	Balance        int64           `bson:"balance"`
	Level          int             `bson:"level"`
	RoomsEntered   []string        `bson:"rooms_entered"`
	Finished       []completionDoc `bson:"finished"`
	CurrentAttempt *attemptDoc     `bson:"current_attempt"`
	UpdatedAt      time.Time       `bson:"updated_at"`
	Version        int64           `bson:"version"`
}

// ProgressRepository implements maze.ProgressRepository on a subdocument of
// the owning user.
type ProgressRepository struct {
	coll *mongo.Collection
	cas  errutil.RetryPolicy
}

// Get retrieves a player's progress.
func (r *ProgressRepository) Get(ctx context.Context, username string) (*maze.Progress, error) {
	var doc struct {
		Progress *progressDoc `bson:"progress"`
	}
	err := r.coll.FindOne(ctx,
		bson.M{"username": username, progressField: bson.M{"$exists": true}},
		options.FindOne().SetProjection(bson.M{progressField: 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && doc.Progress == nil) {
		return nil, oops.With("username", username).Wrap(maze.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get progress", err)
	}
	return doc.Progress.toProgress(username), nil
}

// Create attaches progress to a user that has none.
func (r *ProgressRepository) Create(ctx context.Context, p *maze.Progress) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"username": p.Username, progressField: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{progressField: toProgressDoc(p)}},
	)
	if err != nil {
		return classify("create progress", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"username": p.Username}, options.Count().SetLimit(1))
	if err != nil {
		return classify("create progress", err)
	}
	if n == 0 {
		return oops.Code(maze.CodeInternal).With("username", p.Username).Errorf("no user owns this progress")
	}
	return oops.With("username", p.Username).Wrap(maze.ErrDuplicate)
}

// Update applies fn and writes the result if nobody else changed the
// progress in between. Lost races re-read and re-apply fn.
func (r *ProgressRepository) Update(ctx context.Context, username string, fn func(*maze.Progress) error) (*maze.Progress, error) {
	return errutil.RetryValue(ctx, r.cas, func(ctx context.Context) (*maze.Progress, error) {
		p, err := r.Get(ctx, username)
		if err != nil {
			return nil, err
		}
		version := p.Version
		if err := fn(p); err != nil {
			return nil, err
		}
		p.Version = version + 1

		res, err := r.coll.UpdateOne(ctx,
			bson.M{"username": username, progressField + ".version": version},
			bson.M{"$set": bson.M{progressField: toProgressDoc(p)}},
		)
		if err != nil {
			return nil, classify("update progress", err)
		}
		if res.MatchedCount == 0 {
			return nil, conflict("update progress")
		}
		return p, nil
	})
}

func toProgressDoc(p *maze.Progress) progressDoc {
	doc := progressDoc{
		GameID:       p.GameID,
		CurrentRoom:  p.CurrentRoom,
		Solved:       make([]solvedDoc, len(p.Solved)),
		Balance:      p.Balance,
		Level:        p.Level,
		RoomsEntered: slices.Clone(p.RoomsEntered),
		Finished:     make([]completionDoc, len(p.Finished)),
		UpdatedAt:    p.UpdatedAt,
		Version:      p.Version,
	}
	if doc.RoomsEntered == nil {
		doc.RoomsEntered = []string{}
	}
	for i, s := range p.Solved {
		doc.Solved[i] = solvedDoc(s)
	}
	for i, c := range p.Finished {
		doc.Finished[i] = completionDoc(c)
	}
	if a := p.CurrentAttempt; a != nil {
		doc.CurrentAttempt = &attemptDoc{RiddleID: a.RiddleID, StartedAt: a.StartedAt}
	}
	return doc
}

func (d *progressDoc) toProgress(username string) *maze.Progress {
	p := &maze.Progress{
		Username:     username,
		GameID:       d.GameID,
		CurrentRoom:  d.CurrentRoom,
		Balance:      d.Balance,
		Level:        d.Level,
		RoomsEntered: d.RoomsEntered,
		UpdatedAt:    d.UpdatedAt,
		Version:      d.Version,
	}
	for _, s := range d.Solved {
		p.Solved = append(p.Solved, maze.SolvedRiddle(s))
	}
	for _, c := range d.Finished {
		p.Finished = append(p.Finished, maze.Completion(c))
	}
	if a := d.CurrentAttempt; a != nil {
		p.CurrentAttempt = &maze.Attempt{RiddleID: a.RiddleID, StartedAt: a.StartedAt}
	}
	return p
}

// Compile-time interface check.
var _ maze.ProgressRepository = (*ProgressRepository)(nil)
