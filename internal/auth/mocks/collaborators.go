// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/labyrinth-game/labyrinth/internal/auth"
)

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (_m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := _m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify provides a mock function.
func (_m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := _m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

// DummyHash provides a mock function.
func (_m *MockPasswordHasher) DummyHash() string {
	ret := _m.Called()
	return ret.String(0)
}

// MockMailer is a mock of auth.Mailer.
type MockMailer struct {
	mock.Mock
}

// NewMockMailer creates a mock that asserts its expectations on cleanup.
func NewMockMailer(t TestingT) *MockMailer {
	m := &MockMailer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SendActivation provides a mock function.
func (_m *MockMailer) SendActivation(ctx context.Context, msg auth.ActivationMessage) error {
	ret := _m.Called(ctx, msg)
	return ret.Error(0)
}

// MockAttemptLimiter is a mock of auth.AttemptLimiter.
type MockAttemptLimiter struct {
	mock.Mock
}

// NewMockAttemptLimiter creates a mock that asserts its expectations on cleanup.
func NewMockAttemptLimiter(t TestingT) *MockAttemptLimiter {
	m := &MockAttemptLimiter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Allow provides a mock function.
func (_m *MockAttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ret := _m.Called(ctx, key)
	return ret.Bool(0), ret.Error(1)
}

// Reset provides a mock function.
func (_m *MockAttemptLimiter) Reset(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)
	return ret.Error(0)
}

// MockBreachChecker is a mock of auth.BreachChecker.
type MockBreachChecker struct {
	mock.Mock
}

// NewMockBreachChecker creates a mock that asserts its expectations on cleanup.
func NewMockBreachChecker(t TestingT) *MockBreachChecker {
	m := &MockBreachChecker{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// IsBreached provides a mock function.
func (_m *MockBreachChecker) IsBreached(ctx context.Context, password string) (bool, error) {
	ret := _m.Called(ctx, password)
	return ret.Bool(0), ret.Error(1)
}

// MockOnboarder is a mock of auth.Onboarder.
type MockOnboarder struct {
	mock.Mock
}

// NewMockOnboarder creates a mock that asserts its expectations on cleanup.
func NewMockOnboarder(t TestingT) *MockOnboarder {
	m := &MockOnboarder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// StartGame provides a mock function.
func (_m *MockOnboarder) StartGame(ctx context.Context, username string) error {
	ret := _m.Called(ctx, username)
	return ret.Error(0)
}
