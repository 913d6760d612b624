// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/labyrinth-game/labyrinth/internal/logging"
)

func TestNewTracerProvider_RecordsWithoutExporter(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, TracingOptions{Service: "labyrinth", Version: "test", SampleRatio: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	spanCtx, span := tp.Tracer("test").Start(ctx, "solve")
	defer span.End()

	sc := trace.SpanContextFromContext(spanCtx)
	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())
}

func TestNewTracerProvider_UnsampledSpansStillCarryIDs(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, TracingOptions{Service: "labyrinth", SampleRatio: 0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	spanCtx, span := tp.Tracer("test").Start(ctx, "move")
	defer span.End()

	sc := trace.SpanContextFromContext(spanCtx)
	assert.True(t, sc.HasTraceID())
	assert.False(t, sc.IsSampled())
}

func TestNewTracerProvider_WithEndpointShutsDownCleanly(t *testing.T) {
	ctx := context.Background()
	// Non-routable address; nothing is exported because no span is started.
	tp, err := NewTracerProvider(ctx, TracingOptions{Service: "labyrinth", Endpoint: "http://192.0.2.1:4318", SampleRatio: 1})
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, tp.Shutdown(shutdownCtx))
}

func TestNewTracerProvider_SpansReachLogRecords(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, TracingOptions{Service: "labyrinth", SampleRatio: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var buf bytes.Buffer
	logger := logging.Setup("labyrinth", "test", "json", &buf)

	spanCtx, span := tp.Tracer("test").Start(ctx, "login")
	logger.InfoContext(spanCtx, "user logged in")
	span.End()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	sc := span.SpanContext()
	assert.Equal(t, sc.TraceID().String(), entry["trace_id"])
	assert.Equal(t, sc.SpanID().String(), entry["span_id"])
}
