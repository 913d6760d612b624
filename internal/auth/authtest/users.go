// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package authtest provides in-memory auth collaborators for tests.
package authtest

import (
	"bytes"
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/auth"
)

// UserStore is an in-memory auth.UserRepository. Stored users are copied on
// every read and write.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

// NewUserStore creates an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*auth.User)}
}

// Create stores a copy of user.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return oops.With("field", "username").Wrap(auth.ErrDuplicate)
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return oops.With("field", "email").Wrap(auth.ErrDuplicate)
		}
	}
	s.users[user.Username] = Clone(user)
	return nil
}

// GetByUsername returns a copy of the stored user.
func (s *UserStore) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return Clone(u), nil
}

// Update applies fn to a copy and stores it when fn succeeds.
func (s *UserStore) Update(_ context.Context, username string, fn func(*auth.User) error) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	updated := Clone(u)
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.Version++
	s.users[username] = Clone(updated)
	return updated, nil
}

// CredentialOwner finds the user holding a credential ID.
func (s *UserStore) CredentialOwner(_ context.Context, id []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, u := range s.users {
		for _, c := range u.WebAuthnCredentials {
			if bytes.Equal(c.ID, id) {
				return name, nil
			}
		}
	}
	return "", auth.ErrNotFound
}

// Put stores user directly, bypassing uniqueness checks.
func (s *UserStore) Put(user *auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = Clone(user)
}

// Clone deep-copies a user.
func Clone(u *auth.User) *auth.User {
	c := *u
	c.Activation.Registered = clonePtr(u.Activation.Registered)
	c.SecondFactorPendingUntil = clonePtr(u.SecondFactorPendingUntil)
	c.LockedUntil = clonePtr(u.LockedUntil)
	c.LastLogin = clonePtr(u.LastLogin)
	c.RecoveryKeyHashes = append([]string(nil), u.RecoveryKeyHashes...)
	c.WebAuthnCredentials = make([]auth.WebAuthnCredential, len(u.WebAuthnCredentials))
	for i, cred := range u.WebAuthnCredentials {
		cred.ID = bytes.Clone(cred.ID)
		cred.PublicKey = bytes.Clone(cred.PublicKey)
		cred.AAGUID = bytes.Clone(cred.AAGUID)
		cred.Transports = append([]string(nil), cred.Transports...)
		cred.LastUsedAt = clonePtr(cred.LastUsedAt)
		c.WebAuthnCredentials[i] = cred
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
