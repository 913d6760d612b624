// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/logging"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// unmatchedRoute labels requests no route matched.
const unmatchedRoute = "unmatched"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied request ids.
const maxRequestIDLength = 64

type claimsKey struct{}

// ClaimsFrom returns the session claims of an authenticated request.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

func errUnauthenticated() error {
	return errutil.Authentication(CodeUnauthenticated).Errorf("authentication required")
}

func errForbidden() error {
	return errutil.Authorization(CodeForbidden).Errorf("insufficient role")
}

func errNotFound() error {
	return errutil.NotFound(CodeNotFound).Errorf("no such route")
}

func errMethodNotAllowed() error {
	return errutil.Validation(CodeMethodNotAllowed).Errorf("method not allowed")
}

// authorize enforces routeRoles. Anonymous routes are rate limited per
// client address; the rest need a bearer token of a high enough role.
func (a *API) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := routeName(r)
		required, ok := routeRoles[name]
		if !ok {
			a.logger.ErrorContext(r.Context(), "route has no role", "route", name)
			a.respond.error(w, r, errForbidden())
			return
		}

		if required == auth.RoleAnonymous {
			if !a.allowIP(r) {
				a.respond.error(w, r, errutil.RateLimited(CodeTooManyRequests).Errorf("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			a.respond.error(w, r, errUnauthenticated())
			return
		}
		claims, err := a.tokens.Verify(token)
		if err != nil {
			a.respond.error(w, r, errUnauthenticated())
			return
		}
		if !claims.Role.AtLeast(required) {
			a.respond.error(w, r, oops.With("route", name).With("role", claims.Role.String()).Wrap(errForbidden()))
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = logging.ContextWithAttrs(ctx, slog.String("username", claims.Username()))
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("enduser.id", claims.Username()),
			attribute.String("enduser.role", claims.Role.String()),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// allowIP consults the limiter. Limiter failures let the request through.
func (a *API) allowIP(r *http.Request) bool {
	if a.limiter == nil {
		return true
	}
	allowed, err := a.limiter.Allow(r.Context(), "ip:"+clientIP(r))
	if err != nil {
		errutil.LogWarnContext(r.Context(), a.logger, "ip rate limiter unavailable", err)
		return true
	}
	return allowed
}

func bearerToken(value string) (string, bool) {
	token, ok := strings.CutPrefix(value, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return unmatchedRoute
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return unmatchedRoute
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// requestID returns the client's request id when it is well formed, or a
// fresh ULID.
func requestID(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > maxRequestIDLength {
		return ulid.Make().String()
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || c == '.' ||
			(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return ulid.Make().String()
		}
	}
	return id
}

// observe runs each request inside a server span, tags its log records with
// request_id and route, writes the access log and counts the request by
// route template.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tpl := routeTemplate(r)
		id := requestID(r)
		w.Header().Set(RequestIDHeader, id)

		ctx := a.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := a.tracer.Start(ctx, r.Method+" "+tpl,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", tpl),
				attribute.String("request.id", id),
			),
		)
		defer span.End()
		ctx = logging.ContextWithAttrs(ctx, slog.String("request_id", id), slog.String("route", tpl))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
		a.recorder.RecordRequest(tpl, sw.status)
		a.logger.LogAttrs(ctx, slog.LevelInfo, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote", clientIP(r)),
		)
	})
}

// recoveryLogger adapts slog to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic in http handler", "panic", fmt.Sprint(v...))
}

// originValidator accepts an Origin matching any of the glob patterns.
func originValidator(patterns []string) (handlers.OriginValidator, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, errutil.Validation("HTTP_INVALID_ORIGIN").With("pattern", p).Wrap(err)
		}
		globs = append(globs, g)
	}
	return func(origin string) bool {
		for _, g := range globs {
			if g.Match(origin) {
				return true
			}
		}
		return false
	}, nil
}

// wrap applies the outer middleware: proxy headers, CORS and panic recovery.
func (a *API) wrap(h http.Handler, opts Options) (http.Handler, error) {
	if len(opts.AllowedOrigins) > 0 {
		validate, err := originValidator(opts.AllowedOrigins)
		if err != nil {
			return nil, err
		}
		h = handlers.CORS(
			handlers.AllowedOriginValidator(validate),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", RequestIDHeader, "Traceparent", "Tracestate"}),
			handlers.ExposedHeaders([]string{RequestIDHeader}),
		)(h)
	}
	if opts.TrustProxyHeaders {
		h = handlers.ProxyHeaders(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: a.logger}),
		handlers.PrintRecoveryStack(false),
	)(h), nil
}
