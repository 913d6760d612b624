// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"os"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// SupportedSchemaVersions is the range of schema_version values accepted by
// ParseDefinition.
const SupportedSchemaVersions = "^1.0"

// Definition is an authored maze as read from YAML.
type Definition struct {
	SchemaVersion string             `yaml:"schema_version" json:"schema_version"`
	Game          GameDefinition     `yaml:"game" json:"game"`
	Riddles       []RiddleDefinition `yaml:"riddles" json:"riddles" jsonschema:"minItems=1"`
	Rooms         []RoomDefinition   `yaml:"rooms" json:"rooms" jsonschema:"minItems=1"`
}

// GameDefinition names the game.
type GameDefinition struct {
	ID   string `yaml:"id" json:"id" jsonschema:"pattern=^[a-z0-9_-]+$"`
	Name string `yaml:"name" json:"name" jsonschema:"minLength=1"`
}

// RiddleDefinition is an authored riddle. Either Solution or Checker is
// required.
type RiddleDefinition struct {
	ID         string            `yaml:"id" json:"id" jsonschema:"minLength=1"`
	Level      int               `yaml:"level" json:"level" jsonschema:"minimum=0"`
	Task       string            `yaml:"task" json:"task"`
	Solution   string            `yaml:"solution,omitempty" json:"solution,omitempty"`
	IgnoreCase bool              `yaml:"ignore_case,omitempty" json:"ignore_case,omitempty"`
	Checker    string            `yaml:"checker,omitempty" json:"checker,omitempty"`
	Difficulty int64             `yaml:"difficulty" json:"difficulty" jsonschema:"minimum=0"`
	Deduction  int64             `yaml:"deduction,omitempty" json:"deduction,omitempty" jsonschema:"minimum=0"`
	Credits    string            `yaml:"credits,omitempty" json:"credits,omitempty"`
	Debriefing string            `yaml:"debriefing,omitempty" json:"debriefing,omitempty"`
	Media      []MediaDefinition `yaml:"media,omitempty" json:"media,omitempty"`
}

// MediaDefinition references a stored file.
type MediaDefinition struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind" jsonschema:"enum=image,enum=audio,enum=video,enum=document,enum=other"`
	Key  string `yaml:"key" json:"key" jsonschema:"minLength=1"`
}

// RoomDefinition is an authored room. Doors only need to be declared on one
// side; the opposite door is added when missing.
type RoomDefinition struct {
	ID     string           `yaml:"id" json:"id" jsonschema:"minLength=1"`
	Number int              `yaml:"number" json:"number"`
	Coords Coords           `yaml:"coords" json:"coords"`
	Entry  bool             `yaml:"entry,omitempty" json:"entry,omitempty"`
	Exit   bool             `yaml:"exit,omitempty" json:"exit,omitempty"`
	Doors  []DoorDefinition `yaml:"doors,omitempty" json:"doors,omitempty"`
}

// DoorDefinition is a door leading to another room.
type DoorDefinition struct {
	Direction Direction `yaml:"direction" json:"direction" jsonschema:"enum=n,enum=e,enum=s,enum=w"`
	To        string    `yaml:"to" json:"to" jsonschema:"minLength=1"`
	Riddle    string    `yaml:"riddle" json:"riddle" jsonschema:"minLength=1"`
}

// LoadDefinitionFile reads and validates a maze file.
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, oops.Code(CodeInvalidDefinition).With("path", path).Wrap(err)
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return d, nil
}

// ParseDefinition checks data against the definition schema, decodes it and
// validates the maze graph.
func ParseDefinition(data []byte) (*Definition, error) {
	if len(data) == 0 {
		return nil, invalidDefinition().Errorf("maze definition is empty")
	}
	if err := ValidateDefinitionSchema(data); err != nil {
		return nil, err
	}
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, invalidDefinition().Wrap(err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func invalidDefinition() oops.OopsErrorBuilder {
	return errutil.Validation(CodeInvalidDefinition)
}

// Validate checks the schema version, references, door reciprocity and that
// every entry room reaches an exit. Missing opposite doors are added.
func (d *Definition) Validate() error {
	if err := checkSchemaVersion(d.SchemaVersion); err != nil {
		return err
	}
	if d.Game.ID == "" {
		return invalidDefinition().Errorf("game.id is required")
	}

	riddles := make(map[string]bool, len(d.Riddles))
	for _, r := range d.Riddles {
		if riddles[r.ID] {
			return invalidDefinition().With("riddle_id", r.ID).Errorf("duplicate riddle id %q", r.ID)
		}
		riddles[r.ID] = true
		if r.Solution == "" && r.Checker == "" {
			return invalidDefinition().With("riddle_id", r.ID).Errorf("riddle %q needs a solution or a checker", r.ID)
		}
		if r.Checker != "" {
			if err := CompileChecker(r.Checker); err != nil {
				return invalidDefinition().With("riddle_id", r.ID).Wrapf(err, "riddle %q checker", r.ID)
			}
		}
	}

	rooms := make(map[string]*RoomDefinition, len(d.Rooms))
	for i := range d.Rooms {
		room := &d.Rooms[i]
		if rooms[room.ID] != nil {
			return invalidDefinition().With("room_id", room.ID).Errorf("duplicate room id %q", room.ID)
		}
		rooms[room.ID] = room
	}

	if err := checkDoors(rooms, riddles, d.Rooms); err != nil {
		return err
	}
	if err := addOppositeDoors(rooms, d.Rooms); err != nil {
		return err
	}
	return checkExitsReachable(rooms, d.Rooms)
}

func checkSchemaVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return invalidDefinition().With("schema_version", version).Wrap(err)
	}
	supported, err := semver.NewConstraint(SupportedSchemaVersions)
	if err != nil {
		return oops.Code(CodeInternal).Wrap(err)
	}
	if !supported.Check(v) {
		return invalidDefinition().
			With("schema_version", version).
			With("supported", SupportedSchemaVersions).
			Errorf("unsupported schema version %s", version)
	}
	return nil
}

func checkDoors(rooms map[string]*RoomDefinition, riddles map[string]bool, ordered []RoomDefinition) error {
	for _, room := range ordered {
		seen := make(map[Direction]bool, len(room.Doors))
		for _, door := range room.Doors {
			errb := invalidDefinition().With("room_id", room.ID).With("direction", string(door.Direction))
			switch {
			case !door.Direction.Valid():
				return errb.Errorf("room %q has a door with invalid direction %q", room.ID, door.Direction)
			case seen[door.Direction]:
				return errb.Errorf("room %q has two doors facing %s", room.ID, door.Direction.Name())
			case door.To == room.ID:
				return errb.Errorf("room %q has a door to itself", room.ID)
			case rooms[door.To] == nil:
				return errb.Errorf("room %q has a door to unknown room %q", room.ID, door.To)
			case !riddles[door.Riddle]:
				return errb.Errorf("room %q has a door locked by unknown riddle %q", room.ID, door.Riddle)
			}
			seen[door.Direction] = true
		}
	}
	return nil
}

func addOppositeDoors(rooms map[string]*RoomDefinition, ordered []RoomDefinition) error {
	for _, room := range ordered {
		for _, door := range room.Doors {
			target := rooms[door.To]
			back := door.Direction.Opposite()
			i := slices.IndexFunc(target.Doors, func(d DoorDefinition) bool { return d.Direction == back })
			if i < 0 {
				target.Doors = append(target.Doors, DoorDefinition{Direction: back, To: room.ID, Riddle: door.Riddle})
				continue
			}
			if target.Doors[i].To != room.ID || target.Doors[i].Riddle != door.Riddle {
				return invalidDefinition().
					With("room_id", room.ID).
					With("direction", string(door.Direction)).
					Errorf("door %s of room %q does not match door %s of room %q",
						door.Direction.Name(), room.ID, back.Name(), target.ID)
			}
		}
	}
	return nil
}

func checkExitsReachable(rooms map[string]*RoomDefinition, ordered []RoomDefinition) error {
	var entries []string
	for _, room := range ordered {
		if room.Entry {
			entries = append(entries, room.ID)
		}
	}
	if len(entries) == 0 {
		return invalidDefinition().Errorf("maze has no entry room")
	}
	for _, entry := range entries {
		if !reachesExit(rooms, entry) {
			return invalidDefinition().With("room_id", entry).Errorf("entry room %q cannot reach an exit", entry)
		}
	}
	return nil
}

func reachesExit(rooms map[string]*RoomDefinition, start string) bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		room := rooms[queue[0]]
		queue = queue[1:]
		if room.Exit {
			return true
		}
		for _, door := range room.Doors {
			if !visited[door.To] {
				visited[door.To] = true
				queue = append(queue, door.To)
			}
		}
	}
	return false
}

// Compile converts a validated definition into a publishable Game.
func (d *Definition) Compile() *Game {
	g := &Game{
		ID:      d.Game.ID,
		Name:    d.Game.Name,
		Rooms:   make([]*Room, 0, len(d.Rooms)),
		Riddles: make([]*Riddle, 0, len(d.Riddles)),
	}
	for _, r := range d.Riddles {
		riddle := &Riddle{
			ID:         r.ID,
			GameID:     d.Game.ID,
			Level:      r.Level,
			Task:       r.Task,
			Solution:   r.Solution,
			IgnoreCase: r.IgnoreCase,
			Checker:    r.Checker,
			Difficulty: r.Difficulty,
			Deduction:  r.Deduction,
			Credits:    r.Credits,
			Debriefing: r.Debriefing,
		}
		for _, m := range r.Media {
			riddle.Media = append(riddle.Media, MediaRef(m))
		}
		g.Riddles = append(g.Riddles, riddle)
	}
	for _, r := range d.Rooms {
		room := &Room{
			ID:     r.ID,
			GameID: d.Game.ID,
			Number: r.Number,
			Coords: r.Coords,
			Entry:  r.Entry,
			Exit:   r.Exit,
		}
		for _, door := range r.Doors {
			room.Neighbors = append(room.Neighbors, Neighbor{
				Direction:    door.Direction,
				TargetRoomID: door.To,
				RiddleID:     door.Riddle,
			})
		}
		g.Rooms = append(g.Rooms, room)
	}
	return g
}
