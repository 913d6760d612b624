// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package auth provides authentication for Labyrinth players.
//
// # Domain Types
//
// A User is created with NewUser, which validates the username and email and
// generates the activation PIN. Direct struct initialization bypasses that
// validation. Repository implementations receive pre-validated users.
//
// # Primitives
//
//   - Argon2idHasher - salted, memory-hard password hashing
//   - SessionIssuer - stateless HS512 session tokens
//   - TOTPEngine - RFC 6238 codes with one-step skew and per-step replay blocking
//   - WebAuthnCeremony - FIDO2 registration and assertion with single-use challenges
//
// # Services
//
// Manager composes the primitives into the account flows: registration,
// activation, login with second-factor branching, factor enrolment, password
// change and recovery. Manager is created with NewManager, which validates
// its dependencies.
//
// Every error returned by this package carries an errutil kind. Failures that
// could reveal whether an account exists share one generic code.
package auth
