// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := errutil.NotFound("RIDDLE_NOT_FOUND").
		With("riddle_id", "r1").
		Errorf("riddle not found")

	errutil.LogError(logger, "operation failed", err, "username", "alice")

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "operation failed", logEntry["msg"])
	assert.Equal(t, "RIDDLE_NOT_FOUND", logEntry["code"])
	assert.Equal(t, "not_found", logEntry["kind"])
	assert.Equal(t, "alice", logEntry["username"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Contains(t, logEntry["error"], "standard error")
	assert.NotContains(t, logEntry, "code")
}

func TestLogWarn_UsesWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogWarn(logger, "mail queue full", oops.Code("MAIL_QUEUE_FULL").Errorf("full"))

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "WARN", logEntry["level"])
	assert.Equal(t, "internal", logEntry["kind"])
}

type requestKey struct{}

// contextHandler records the request value of each record's context.
type contextHandler struct {
	slog.Handler
	seen *[]any
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	*h.seen = append(*h.seen, ctx.Value(requestKey{}))
	return h.Handler.Handle(ctx, r)
}

func TestLogWarnContext_PassesContextToHandler(t *testing.T) {
	var buf bytes.Buffer
	var seen []any
	logger := slog.New(contextHandler{Handler: slog.NewJSONHandler(&buf, nil), seen: &seen})
	ctx := context.WithValue(context.Background(), requestKey{}, "req-1")

	errutil.LogWarnContext(ctx, logger, "limiter unavailable", errutil.Transient("STORE_UNAVAILABLE").Errorf("down"))
	errutil.LogErrorContext(ctx, logger, "request failed", errors.New("boom"))

	assert.Equal(t, []any{"req-1", "req-1"}, seen)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"code":"STORE_UNAVAILABLE"`)
}
