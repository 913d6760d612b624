// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

type doorDoc struct {
	Direction    string `bson:"direction"`
	TargetRoomID string `bson:"target_room_id"`
	RiddleID     string `bson:"riddle_id"`
}

type roomDoc struct {
	ID        string    `bson:"_id"`
	GameID    string    `bson:"game_id"`
	Number    int       `bson:"number"`
	X         int       `bson:"x"`
	Y         int       `bson:"y"`
	Entry     bool      `bson:"entry"`
	Exit      bool      `bson:"exit"`
	Neighbors []doorDoc `bson:"neighbors"`
}

type mediaDoc struct {
	Name string `bson:"name"`
	Kind string `bson:"kind"`
	Key  string `bson:"key"`
}

type riddleDoc struct {
	ID         string     `bson:"_id"`
	GameID     string     `bson:"game_id"`
	Level      int        `bson:"level"`
	Task       string     `bson:"task"`
	Media      []mediaDoc `bson:"media"`
	Solution   string     `bson:"solution"`
	IgnoreCase bool       `bson:"ignore_case"`
	Checker    string     `bson:"checker,omitempty"`
	Difficulty int64      `bson:"difficulty"`
	Deduction  int64      `bson:"deduction"`
	Credits    string     `bson:"credits,omitempty"`
	Debriefing string     `bson:"debriefing,omitempty"`
}

type gameDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// RoomRepository implements maze.RoomRepository. Doors are embedded in
// their room.
type RoomRepository struct {
	coll *mongo.Collection
}

// Get retrieves a room by ID.
func (r *RoomRepository) Get(ctx context.Context, id string) (*maze.Room, error) {
	return r.one(ctx, "get room", bson.M{"_id": id}, nil, oops.With("room_id", id))
}

// Entry returns the lowest-numbered entry room of a game.
func (r *RoomRepository) Entry(ctx context.Context, gameID string) (*maze.Room, error) {
	return r.one(ctx, "get entry room",
		bson.M{"game_id": gameID, "entry": true},
		options.FindOne().SetSort(bson.D{{Key: "number", Value: 1}}),
		oops.With("game_id", gameID),
	)
}

func (r *RoomRepository) one(ctx context.Context, op string, filter bson.M, opts *options.FindOneOptions, errCtx oops.OopsErrorBuilder) (*maze.Room, error) {
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	var doc roomDoc
	err := r.coll.FindOne(ctx, filter, findOpts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errCtx.Wrap(maze.ErrNotFound)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return doc.toRoom(), nil
}

// ListByGame returns the rooms of a game ordered by number.
func (r *RoomRepository) ListByGame(ctx context.Context, gameID string) ([]*maze.Room, error) {
	cur, err := r.coll.Find(ctx, bson.M{"game_id": gameID}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, classify("list rooms", err)
	}
	var docs []roomDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("list rooms", err)
	}
	rooms := make([]*maze.Room, len(docs))
	for i := range docs {
		rooms[i] = docs[i].toRoom()
	}
	return rooms, nil
}

// RiddleRepository implements maze.RiddleRepository.
type RiddleRepository struct {
	coll *mongo.Collection
}

// Get retrieves a riddle by ID.
func (r *RiddleRepository) Get(ctx context.Context, id string) (*maze.Riddle, error) {
	var doc riddleDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.With("riddle_id", id).Wrap(maze.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get riddle", err)
	}
	return doc.toRiddle(), nil
}

// ListByGame returns the riddles of a game ordered by level.
func (r *RiddleRepository) ListByGame(ctx context.Context, gameID string) ([]*maze.Riddle, error) {
	return r.list(ctx, "list riddles", bson.M{"game_id": gameID})
}

// ListByLevel returns the riddles of a level across games.
func (r *RiddleRepository) ListByLevel(ctx context.Context, level int) ([]*maze.Riddle, error) {
	return r.list(ctx, "list riddles by level", bson.M{"level": level})
}

func (r *RiddleRepository) list(ctx context.Context, op string, filter bson.M) ([]*maze.Riddle, error) {
	sort := bson.D{{Key: "level", Value: 1}, {Key: "_id", Value: 1}}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, classify(op, err)
	}
	var docs []riddleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(op, err)
	}
	riddles := make([]*maze.Riddle, len(docs))
	for i := range docs {
		riddles[i] = docs[i].toRiddle()
	}
	return riddles, nil
}

// GameWriter implements maze.GameWriter. Without multi-document
// transactions a reader may briefly see a mix of old and new documents
// while a game is republished.
type GameWriter struct {
	games   *mongo.Collection
	rooms   *mongo.Collection
	riddles *mongo.Collection
}

// SaveGame upserts the game, its riddles and rooms, then removes documents
// the new version no longer has.
func (w *GameWriter) SaveGame(ctx context.Context, g *maze.Game) error {
	_, err := w.games.ReplaceOne(ctx,
		bson.M{"_id": g.ID},
		gameDoc{ID: g.ID, Name: g.Name, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return classify("upsert game", err)
	}

	riddleIDs := make([]string, len(g.Riddles))
	riddleModels := make([]mongo.WriteModel, len(g.Riddles))
	for i, r := range g.Riddles {
		riddleIDs[i] = r.ID
		riddleModels[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(toRiddleDoc(g.ID, r)).
			SetUpsert(true)
	}
	if err := w.replace(ctx, w.riddles, "save riddles", g.ID, riddleIDs, riddleModels); err != nil {
		return err
	}

	roomIDs := make([]string, len(g.Rooms))
	roomModels := make([]mongo.WriteModel, len(g.Rooms))
	for i, room := range g.Rooms {
		roomIDs[i] = room.ID
		roomModels[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": room.ID}).
			SetReplacement(toRoomDoc(g.ID, room)).
			SetUpsert(true)
	}
	return w.replace(ctx, w.rooms, "save rooms", g.ID, roomIDs, roomModels)
}

func (w *GameWriter) replace(ctx context.Context, coll *mongo.Collection, op, gameID string, ids []string, models []mongo.WriteModel) error {
	if len(models) > 0 {
		if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
			return classify(op, err)
		}
	}
	_, err := coll.DeleteMany(ctx, bson.M{"game_id": gameID, "_id": bson.M{"$nin": ids}})
	return classify(op, err)
}

func toRoomDoc(gameID string, r *maze.Room) roomDoc {
	doors := make([]doorDoc, len(r.Neighbors))
	for i, n := range r.Neighbors {
		doors[i] = doorDoc{Direction: string(n.Direction), TargetRoomID: n.TargetRoomID, RiddleID: n.RiddleID}
	}
	return roomDoc{
		ID:        r.ID,
		GameID:    gameID,
		Number:    r.Number,
		X:         r.Coords.X,
		Y:         r.Coords.Y,
		Entry:     r.Entry,
		Exit:      r.Exit,
		Neighbors: doors,
	}
}

func (d *roomDoc) toRoom() *maze.Room {
	room := &maze.Room{
		ID:        d.ID,
		GameID:    d.GameID,
		Number:    d.Number,
		Coords:    maze.Coords{X: d.X, Y: d.Y},
		Entry:     d.Entry,
		Exit:      d.Exit,
		Neighbors: make([]maze.Neighbor, 0, len(d.Neighbors)),
	}
	for _, n := range d.Neighbors {
		room.Neighbors = append(room.Neighbors, maze.Neighbor{
			Direction:    maze.Direction(n.Direction),
			TargetRoomID: n.TargetRoomID,
			RiddleID:     n.RiddleID,
		})
	}
	return room
}

func toRiddleDoc(gameID string, r *maze.Riddle) riddleDoc {
	media := make([]mediaDoc, len(r.Media))
	for i, m := range r.Media {
		media[i] = mediaDoc(m)
	}
	return riddleDoc{
		ID:         r.ID,
		GameID:     gameID,
		Level:      r.Level,
		Task:       r.Task,
		Media:      media,
		Solution:   r.Solution,
		IgnoreCase: r.IgnoreCase,
		Checker:    r.Checker,
		Difficulty: r.Difficulty,
		Deduction:  r.Deduction,
		Credits:    r.Credits,
		Debriefing: r.Debriefing,
	}
}

func (d *riddleDoc) toRiddle() *maze.Riddle {
	r := &maze.Riddle{
		ID:         d.ID,
		GameID:     d.GameID,
		Level:      d.Level,
		Task:       d.Task,
		Solution:   d.Solution,
		IgnoreCase: d.IgnoreCase,
		Checker:    d.Checker,
		Difficulty: d.Difficulty,
		Deduction:  d.Deduction,
		Credits:    d.Credits,
		Debriefing: d.Debriefing,
	}
	for _, m := range d.Media {
		r.Media = append(r.Media, maze.MediaRef(m))
	}
	return r
}

// Compile-time interface checks.
var (
	_ maze.RoomRepository   = (*RoomRepository)(nil)
	_ maze.RiddleRepository = (*RiddleRepository)(nil)
	_ maze.GameWriter       = (*GameWriter)(nil)
)
