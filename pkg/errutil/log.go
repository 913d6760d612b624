// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, kind and context.
// For standard errors, it logs the error string. Extra attrs are appended.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logWithLevel(context.Background(), logger, slog.LevelError, msg, err, attrs)
}

// LogWarn is LogError at warning level, for failures that do not fail the request.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	logWithLevel(context.Background(), logger, slog.LevelWarn, msg, err, attrs)
}

// LogErrorContext is LogError with the request context, so trace and
// request attributes reach the record.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logWithLevel(ctx, logger, slog.LevelError, msg, err, attrs)
}

// LogWarnContext is LogWarn with the request context.
func LogWarnContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logWithLevel(ctx, logger, slog.LevelWarn, msg, err, attrs)
}

func logWithLevel(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, extra []any) {
	attrs := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		attrs = append(attrs, "kind", string(KindOf(err)))
		if oopsCtx := oopsErr.Context(); len(oopsCtx) > 0 {
			attrs = append(attrs, "context", oopsCtx)
		}
	}
	attrs = append(attrs, extra...)
	logger.Log(ctx, level, msg, attrs...)
}
