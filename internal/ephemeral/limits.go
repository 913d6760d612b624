// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package ephemeral

import (
	"strings"
	"time"
)

// Limit allows Max attempts per Window for keys starting with Prefix.
type Limit struct {
	Prefix string
	Max    int64
	Window time.Duration
}

// Limits selects the Limit for a key. The longest matching prefix wins and
// Default applies to everything else.
type Limits struct {
	Rules   []Limit
	Default Limit
}

// DefaultLimits throttles activation PINs, TOTP codes and recovery keys per
// user and anonymous requests per client address.
func DefaultLimits() Limits {
	return Limits{
		Rules: []Limit{
			{Prefix: "activate:", Max: 5, Window: 15 * time.Minute},
			{Prefix: "totp:", Max: 5, Window: time.Minute},
			{Prefix: "recover:", Max: 5, Window: 15 * time.Minute},
			{Prefix: "ip:", Max: 50, Window: time.Minute},
		},
		Default: Limit{Max: 10, Window: time.Minute},
	}
}

// WithRule returns a copy of l with rule added or replacing the rule with the
// same prefix.
func (l Limits) WithRule(rule Limit) Limits {
	rules := make([]Limit, 0, len(l.Rules)+1)
	for _, r := range l.Rules {
		if r.Prefix != rule.Prefix {
			rules = append(rules, r)
		}
	}
	l.Rules = append(rules, rule)
	return l
}

func (l Limits) forKey(key string) Limit {
	best, found := l.Default, false
	for _, r := range l.Rules {
		if strings.HasPrefix(key, r.Prefix) && (!found || len(r.Prefix) > len(best.Prefix)) {
			best, found = r, true
		}
	}
	return best
}
