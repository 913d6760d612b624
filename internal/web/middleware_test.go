// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/web"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

const (
	incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	traceparent     = "00-" + incomingTraceID + "-00f067aa0ba902b7-01"
)

// withTracing records every span the API starts and honours W3C headers.
func withTracing(t *testing.T) (harnessOption, *tracetest.SpanRecorder) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return func(d *web.Deps, _ *web.Options) {
		d.Tracer = tp.Tracer("test")
		d.Propagator = propagation.TraceContext{}
	}, spans
}

// unavailableStats fails Stats the way a store outage does.
type unavailableStats struct {
	web.Game
}

func (unavailableStats) Stats(context.Context, string) (*maze.Stats, error) {
	return nil, errutil.Transient("MAZE_STORE_UNAVAILABLE").Errorf("store unavailable")
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func endedSpan(t *testing.T, spans *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	require.Failf(t, "span not recorded", "no ended span named %q", name)
	return nil
}

func TestObserve_ServerSpanContinuesIncomingTrace(t *testing.T) {
	tracing, spans := withTracing(t)
	h := newHarness(t, tracing)
	token := h.signup("alice")

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, h.srv.URL+"/user/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("traceparent", traceparent)
	res := h.send(req)
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	span := endedSpan(t, spans, "GET /user/whoami")
	assert.Equal(t, incomingTraceID, span.SpanContext().TraceID().String())
	assert.True(t, span.Parent().IsRemote())
	assert.Equal(t, "/user/whoami", spanAttr(span, "http.route").AsString())
	assert.Equal(t, int64(http.StatusOK), spanAttr(span, "http.response.status_code").AsInt64())
	assert.Equal(t, "alice", spanAttr(span, "enduser.id").AsString())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestObserve_ServerErrorsMarkTheSpan(t *testing.T) {
	tracing, spans := withTracing(t)
	h := newHarness(t, tracing, func(d *web.Deps, _ *web.Options) {
		d.Game = unavailableStats{Game: d.Game}
	})
	token := h.signup("alice")

	res := h.do(http.MethodGet, "/game/stats/tutorial", token, nil)
	require.Equal(t, http.StatusServiceUnavailable, res.status)

	span := endedSpan(t, spans, "GET /game/stats/{id}")
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestObserve_RequestID(t *testing.T) {
	h := newHarness(t)

	t.Run("client id is echoed", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, h.srv.URL+"/ping", nil)
		require.NoError(t, err)
		req.Header.Set(web.RequestIDHeader, "req-42")
		res := h.send(req)
		assert.Equal(t, "req-42", res.header.Get(web.RequestIDHeader))
	})

	t.Run("missing id is generated", func(t *testing.T) {
		res := h.do(http.MethodGet, "/ping", "", nil)
		_, err := ulid.ParseStrict(res.header.Get(web.RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("malformed id is replaced", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, h.srv.URL+"/ping", nil)
		require.NoError(t, err)
		req.Header.Set(web.RequestIDHeader, "bad id\twith spaces")
		res := h.send(req)
		_, err = ulid.ParseStrict(res.header.Get(web.RequestIDHeader))
		assert.NoError(t, err)
	})
}

func TestObserve_LogsCarryRequestContext(t *testing.T) {
	tracing, _ := withTracing(t)
	h := newHarness(t, tracing, func(d *web.Deps, _ *web.Options) {
		d.Game = unavailableStats{Game: d.Game}
	})
	token := h.signup("alice")

	t.Run("engine logs", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, h.srv.URL+"/riddle/solve/answer",
			jsonBody(t, web.SolveRequest{Answer: "42"}))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(web.RequestIDHeader, "req-solve")
		req.Header.Set("traceparent", traceparent)
		res := h.send(req)
		require.Equal(t, http.StatusOK, res.status, string(res.body))

		solved := h.logs.entries(t, "riddle solved")
		require.Len(t, solved, 1)
		assert.Equal(t, "req-solve", solved[0]["request_id"])
		assert.Equal(t, "/riddle/solve/{id}", solved[0]["route"])
		assert.Equal(t, "alice", solved[0]["username"])
		assert.Equal(t, incomingTraceID, solved[0]["trace_id"])
	})

	t.Run("access log", func(t *testing.T) {
		var found bool
		for _, entry := range h.logs.entries(t, "http request") {
			if entry["request_id"] == "req-solve" {
				found = true
				assert.Equal(t, "/riddle/solve/{id}", entry["route"])
				assert.EqualValues(t, http.StatusOK, entry["status"])
			}
		}
		assert.True(t, found, "access log line for req-solve")
	})

	t.Run("failures name the caller", func(t *testing.T) {
		res := h.do(http.MethodGet, "/game/stats/tutorial", token, nil)
		require.Equal(t, http.StatusServiceUnavailable, res.status)

		failed := h.logs.entries(t, "request failed")
		require.Len(t, failed, 1)
		assert.Equal(t, "alice", failed[0]["username"])
		assert.Equal(t, "/game/stats/{id}", failed[0]["route"])
		assert.NotEmpty(t, failed[0]["request_id"])
	})
}
