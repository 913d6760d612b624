// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"strings"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Role is a closed, ordered set of privilege levels.
type Role int

// Roles in ascending order of privilege.
const (
	RoleAnonymous Role = iota
	RoleUser
	RoleDesigner
	RoleAdmin
)

var roleNames = [...]string{
	RoleAnonymous: "anonymous",
	RoleUser:      "user",
	RoleDesigner:  "designer",
	RoleAdmin:     "admin",
}

// String returns the lowercase role name used in tokens and JSON.
func (r Role) String() string {
	if r < RoleAnonymous || r > RoleAdmin {
		return "unknown"
	}
	return roleNames[r]
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleAnonymous && r <= RoleAdmin
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	return r >= required
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return RoleAnonymous, errutil.Validation(CodeInvalidRole).With("role", s).Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
