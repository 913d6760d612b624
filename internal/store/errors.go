// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package store

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// CodeUnavailable marks database failures that are safe to retry.
const CodeUnavailable = "STORE_UNAVAILABLE"

// Classify wraps a database error with the failed operation. Connection
// loss, timeouts, serialization failures and deadlocks are tagged
// transient so callers may retry them.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return errutil.Transient(CodeUnavailable).With("operation", op).Wrap(err)
	}
	return oops.With("operation", op).Wrap(err)
}

// IsTransient reports whether err is a failure a retry may cure.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code) && pgErr.Code != pgerrcode.QueryCanceled,
			pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected:
			return true
		}
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// UniqueViolation returns the violated constraint when err is a unique key
// violation.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
