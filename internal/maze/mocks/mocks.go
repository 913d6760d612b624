// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// MockProgressRepository is a mock of maze.ProgressRepository.
type MockProgressRepository struct {
	mock.Mock
}

// NewMockProgressRepository creates a mock that asserts its expectations on cleanup.
func NewMockProgressRepository(t TestingT) *MockProgressRepository {
	m := &MockProgressRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Get provides a mock function.
func (_m *MockProgressRepository) Get(ctx context.Context, username string) (*maze.Progress, error) {
	ret := _m.Called(ctx, username)
	if fn, ok := ret.Get(0).(func(context.Context, string) (*maze.Progress, error)); ok {
		return fn(ctx, username)
	}
	p, _ := ret.Get(0).(*maze.Progress)
	return p, ret.Error(1)
}

// Create provides a mock function.
func (_m *MockProgressRepository) Create(ctx context.Context, p *maze.Progress) error {
	ret := _m.Called(ctx, p)
	return ret.Error(0)
}

// Update provides a mock function.
func (_m *MockProgressRepository) Update(ctx context.Context, username string, fn func(*maze.Progress) error) (*maze.Progress, error) {
	ret := _m.Called(ctx, username, fn)
	if rf, ok := ret.Get(0).(func(context.Context, string, func(*maze.Progress) error) (*maze.Progress, error)); ok {
		return rf(ctx, username, fn)
	}
	p, _ := ret.Get(0).(*maze.Progress)
	return p, ret.Error(1)
}

// MockMediaResolver is a mock of maze.MediaResolver.
type MockMediaResolver struct {
	mock.Mock
}

// NewMockMediaResolver creates a mock that asserts its expectations on cleanup.
func NewMockMediaResolver(t TestingT) *MockMediaResolver {
	m := &MockMediaResolver{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Resolve provides a mock function.
func (_m *MockMediaResolver) Resolve(ctx context.Context, ref maze.MediaRef) (string, error) {
	ret := _m.Called(ctx, ref)
	return ret.String(0), ret.Error(1)
}

// MockRecorder is a mock of maze.Recorder.
type MockRecorder struct {
	mock.Mock
}

// NewMockRecorder creates a mock that asserts its expectations on cleanup.
func NewMockRecorder(t TestingT) *MockRecorder {
	m := &MockRecorder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// RecordMove provides a mock function.
func (_m *MockRecorder) RecordMove(result string) {
	_m.Called(result)
}

// RecordSolve provides a mock function.
func (_m *MockRecorder) RecordSolve(result string) {
	_m.Called(result)
}
