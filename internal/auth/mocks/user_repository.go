// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/labyrinth-game/labyrinth/internal/auth"
)

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (_m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	ret := _m.Called(ctx, user)
	if rf, ok := ret.Get(0).(func(context.Context, *auth.User) error); ok {
		return rf(ctx, user)
	}
	return ret.Error(0)
}

// GetByUsername provides a mock function.
func (_m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	ret := _m.Called(ctx, username)
	if rf, ok := ret.Get(0).(func(context.Context, string) (*auth.User, error)); ok {
		return rf(ctx, username)
	}
	var r0 *auth.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.User)
	}
	return r0, ret.Error(1)
}

// Update provides a mock function.
func (_m *MockUserRepository) Update(ctx context.Context, username string, fn func(*auth.User) error) (*auth.User, error) {
	ret := _m.Called(ctx, username, fn)
	if rf, ok := ret.Get(0).(func(context.Context, string, func(*auth.User) error) (*auth.User, error)); ok {
		return rf(ctx, username, fn)
	}
	var r0 *auth.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.User)
	}
	return r0, ret.Error(1)
}

// CredentialOwner provides a mock function.
func (_m *MockUserRepository) CredentialOwner(ctx context.Context, credentialID []byte) (string, error) {
	ret := _m.Called(ctx, credentialID)
	if rf, ok := ret.Get(0).(func(context.Context, []byte) (string, error)); ok {
		return rf(ctx, credentialID)
	}
	return ret.String(0), ret.Error(1)
}
