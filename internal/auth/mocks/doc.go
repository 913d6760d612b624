// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package mocks provides testify mocks of the auth interfaces.
package mocks

import "github.com/stretchr/testify/mock"

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}
