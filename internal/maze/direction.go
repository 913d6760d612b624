// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"strings"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Direction is a compass direction a door faces.
type Direction string

// Compass directions.
const (
	North Direction = "n"
	East  Direction = "e"
	South Direction = "s"
	West  Direction = "w"
)

// Directions lists every direction in clockwise order.
var Directions = []Direction{North, East, South, West}

var directionNames = map[Direction]string{
	North: "north",
	East:  "east",
	South: "south",
	West:  "west",
}

// ParseDirection accepts a single letter or a full name, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for d, name := range directionNames {
		if v == string(d) || v == name {
			return d, nil
		}
	}
	return "", errutil.Validation(CodeInvalidDirection).With("direction", s).
		Errorf("direction must be one of n, e, s, w")
}

// Valid reports whether d is one of the four compass directions.
func (d Direction) Valid() bool {
	_, ok := directionNames[d]
	return ok
}

// Opposite returns the direction a door faces from the other side.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return ""
	}
}

// Name returns the full lowercase name.
func (d Direction) Name() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return string(d)
}
