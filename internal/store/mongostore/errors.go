// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package mongostore

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Error codes returned by this package.
const (
	CodeUnavailable = "STORE_UNAVAILABLE"
	CodeConflict    = "STORE_VERSION_CONFLICT"
)

// duplicateFields maps unique index names to the field reported with
// ErrDuplicate.
var duplicateFields = map[string]string{
	indexUsername:   "username",
	indexEmail:      "email",
	indexCredential: "credential_id",
	"_id_":          "id",
}

// classify tags network failures, timeouts and retryable server errors as
// transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return errutil.Transient(CodeUnavailable).With("operation", op).Wrap(err)
	}
	return oops.With("operation", op).Wrap(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel("RetryableWriteError") || labeled.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// duplicateField names the field behind a duplicate key error.
func duplicateField(err error) (string, bool) {
	if !mongo.IsDuplicateKeyError(err) {
		return "", false
	}
	msg := err.Error()
	for index, field := range duplicateFields {
		if strings.Contains(msg, "index: "+index+" ") {
			return field, true
		}
	}
	return "unknown", true
}

// conflict is returned when another writer bumped the version first.
func conflict(op string) error {
	return errutil.Transient(CodeConflict).With("operation", op).Errorf("document changed concurrently")
}
