// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package web exposes the account and game operations as a REST/JSON API.
//
// Every route carries a minimum role in routeRoles. Requests to routes above
// RoleAnonymous must present "Authorization: Bearer <token>"; a missing or
// invalid token yields 401 and an insufficient role 403. Errors are
// rendered as {"error": {"code": ..., "message": ...}} with the status
// derived from the error kind.
package web
