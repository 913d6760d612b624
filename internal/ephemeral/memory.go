// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package ephemeral

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of writes between expiry sweeps.
const sweepEvery = 256

type entry struct {
	value   []byte
	count   int64
	expires time.Time
}

// Memory is an in-process store. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	limits  Limits
	now     func() time.Time
	writes  int
}

// NewMemory creates an empty in-process store.
func NewMemory(limits Limits) *Memory {
	return &Memory{entries: make(map[string]*entry), limits: limits, now: time.Now}
}

// WithClock replaces the time source. Call before first use.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Put stores value under key for ttl.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries["c:"+key] = &entry{value: append([]byte(nil), value...), expires: m.now().Add(ttl)}
	m.tick()
	return nil
}

// Take returns and removes the value under key.
func (m *Memory) Take(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live("c:" + key)
	if e == nil {
		return nil, false, nil
	}
	delete(m.entries, "c:"+key)
	return e.value, true, nil
}

// Claim marks key as used. It returns false while an earlier claim is live.
func (m *Memory) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live("r:"+key) != nil {
		return false, nil
	}
	m.entries["r:"+key] = &entry{expires: m.now().Add(ttl)}
	m.tick()
	return true, nil
}

// Allow counts an attempt for key and reports whether it is within its limit.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := m.limits.forKey(key)
	e := m.live("a:" + key)
	if e == nil {
		e = &entry{expires: m.now().Add(limit.Window)}
		m.entries["a:"+key] = e
		m.tick()
	}
	e.count++
	return e.count <= limit.Max, nil
}

// Reset forgets the attempts counted for key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, "a:"+key)
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close releases nothing.
func (m *Memory) Close() error { return nil }

// live returns the entry under key unless it has expired. Caller holds mu.
func (m *Memory) live(key string) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) tick() {
	m.writes++
	if m.writes%sweepEvery != 0 {
		return
	}
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
