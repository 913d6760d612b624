// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// Accounts is the account surface the API serves. *auth.Manager implements it.
type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResult, error)
	Activate(ctx context.Context, username, pin string) (*auth.ActivationResult, error)
	Login(ctx context.Context, username, password, totpCode string) (*auth.LoginResult, error)
	LoginTOTP(ctx context.Context, username, code string) (*auth.LoginResult, error)
	LoginWebAuthnStart(ctx context.Context, username string) (*protocol.CredentialAssertion, error)
	LoginWebAuthnFinish(ctx context.Context, username string, body io.Reader) (*auth.LoginResult, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	RecoverAccount(ctx context.Context, username, key, newPassword string) error
	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, username string) (*auth.User, error)
	Promote(ctx context.Context, actor, target string, role auth.Role) (*auth.User, error)
	EnableTOTPStart(ctx context.Context, username string) (*auth.TOTPProvisioning, error)
	EnableTOTPConfirm(ctx context.Context, username, code string) error
	DisableTOTP(ctx context.Context, username, code string) error
	EnableWebAuthnStart(ctx context.Context, username string) (*protocol.CredentialCreation, error)
	EnableWebAuthnFinish(ctx context.Context, username string, body io.Reader) (*auth.WebAuthnCredential, error)
}

// TokenVerifier validates bearer tokens. *auth.SessionIssuer implements it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Game is the gameplay surface the API serves. *maze.Engine implements it.
type Game interface {
	Progress(ctx context.Context, username string) (*maze.Progress, error)
	CurrentRoom(ctx context.Context, username string) (*maze.Progress, *maze.Room, error)
	Go(ctx context.Context, username string, dir maze.Direction) (*maze.MoveResult, error)
	DoorInfo(ctx context.Context, username string, dir maze.Direction) (*maze.DoorInfo, error)
	EnterDoor(ctx context.Context, username string, dir maze.Direction, answer string) (*maze.EnterResult, error)
	Riddle(ctx context.Context, username, riddleID string) (*maze.RiddleView, error)
	Solve(ctx context.Context, username, riddleID, answer string) (*maze.SolveResult, error)
	Debriefing(ctx context.Context, username, riddleID string) (*maze.Debriefing, error)
	Stats(ctx context.Context, gameID string) (*maze.Stats, error)
	RiddlesByLevel(ctx context.Context, level int) ([]*maze.Riddle, error)
}

// RequestRecorder counts served requests, typically for metrics.
type RequestRecorder interface {
	RecordRequest(route string, code int)
}

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, int) {}

// tracerName identifies the spans this package starts.
const tracerName = "github.com/labyrinth-game/labyrinth/internal/web"

// Deps are the collaborators of the API. Limiter, Recorder, Logger, Tracer
// and Propagator are optional; the tracing pair defaults to the otel
// globals.
type Deps struct {
	Accounts   Accounts
	Tokens     TokenVerifier
	Game       Game
	Limiter    auth.AttemptLimiter
	Recorder   RequestRecorder
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator
}

// Options tune the outer middleware.
type Options struct {
	// AllowedOrigins are glob patterns for CORS. Empty disables CORS.
	AllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	TrustProxyHeaders bool
}

// API serves the game over REST/JSON.
type API struct {
	accounts Accounts
	tokens   TokenVerifier
	game     Game
	limiter  auth.AttemptLimiter
	recorder RequestRecorder
	logger   *slog.Logger
	respond  responder

	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewHandler builds the HTTP handler serving every route.
func NewHandler(deps Deps, opts Options) (http.Handler, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Code("WEB_CONFIG").Errorf("accounts are required")
	case deps.Tokens == nil:
		return nil, oops.Code("WEB_CONFIG").Errorf("token verifier is required")
	case deps.Game == nil:
		return nil, oops.Code("WEB_CONFIG").Errorf("game is required")
	}
	a := &API{
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		game:     deps.Game,
		limiter:  deps.Limiter,
		recorder: deps.Recorder,
		logger:   deps.Logger,

		tracer:     deps.Tracer,
		propagator: deps.Propagator,
	}
	if a.recorder == nil {
		a.recorder = noopRecorder{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}
	if a.propagator == nil {
		a.propagator = otel.GetTextMapPropagator()
	}
	a.respond = responder{logger: a.logger}
	return a.wrap(a.router(), opts)
}

// Compile-time interface checks.
var (
	_ Accounts      = (*auth.Manager)(nil)
	_ TokenVerifier = (*auth.SessionIssuer)(nil)
	_ Game          = (*maze.Engine)(nil)
)
