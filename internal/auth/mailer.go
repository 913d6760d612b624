// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import "context"

// ActivationMessage carries the PIN a new user needs to activate the account.
type ActivationMessage struct {
	Username string
	Email    string
	PIN      string
}

// Mailer delivers activation messages. Implementations may queue and return
// before delivery; an error means the message was not accepted.
type Mailer interface {
	SendActivation(ctx context.Context, msg ActivationMessage) error
}

// Onboarder places a freshly activated user into the game. It must be
// idempotent.
type Onboarder interface {
	StartGame(ctx context.Context, username string) error
}

// LoginRecorder observes login outcomes, typically for metrics.
type LoginRecorder interface {
	RecordLogin(result string)
}

// Login outcomes reported to a LoginRecorder.
const (
	LoginResultSuccess      = "success"
	LoginResultSecondFactor = "second_factor"
	LoginResultFailure      = "failure"
	LoginResultLocked       = "locked"
)

type noopRecorder struct{}

func (noopRecorder) RecordLogin(string) {}
