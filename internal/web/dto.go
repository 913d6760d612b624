// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 16 << 10

// validator is implemented by request bodies that check their own fields.
type validator interface {
	Validate() error
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst validator) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errutil.Validation(CodeMalformedRequest).Wrapf(err, "malformed JSON body")
	}
	return dst.Validate()
}

// field is a named request value.
type field struct {
	name  string
	value string
}

// required reports the first blank field, in the order given.
func required(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return errutil.Validation(CodeMalformedRequest).With("field", f.name).Errorf("%s is required", f.name)
		}
	}
	return nil
}

// RegisterRequest is the body of POST /user/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks presence; the account rules are enforced by auth.
func (r *RegisterRequest) Validate() error {
	return required(field{"username", r.Username}, field{"email", r.Email}, field{"password", r.Password})
}

// ActivateRequest is the body of POST /user/activate.
type ActivateRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

// Validate checks presence.
func (r *ActivateRequest) Validate() error {
	return required(field{"username", r.Username}, field{"pin", r.PIN})
}

// LoginRequest is the body of POST /user/login. TOTP may be sent along
// when it is the only second factor.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTP     string `json:"totp,omitempty"`
}

// Validate checks presence.
func (r *LoginRequest) Validate() error {
	return required(field{"username", r.Username}, field{"password", r.Password})
}

// TOTPLoginRequest is the body of POST /user/totp/login.
type TOTPLoginRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// Validate checks presence.
func (r *TOTPLoginRequest) Validate() error {
	return required(field{"username", r.Username}, field{"code", r.Code})
}

// TOTPCodeRequest is the body of the TOTP enable and disable routes. Code
// is optional when starting enrolment.
type TOTPCodeRequest struct {
	Code string `json:"code,omitempty"`
}

// Validate accepts any body.
func (r *TOTPCodeRequest) Validate() error { return nil }

// ChangePasswordRequest is the body of POST /user/passwd.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Validate checks presence.
func (r *ChangePasswordRequest) Validate() error {
	return required(field{"old_password", r.OldPassword}, field{"new_password", r.NewPassword})
}

// RecoverRequest is the body of POST /user/recover.
type RecoverRequest struct {
	Username    string `json:"username"`
	RecoveryKey string `json:"recovery_key"`
	NewPassword string `json:"new_password"`
}

// Validate checks presence.
func (r *RecoverRequest) Validate() error {
	return required(
		field{"username", r.Username},
		field{"recovery_key", r.RecoveryKey},
		field{"new_password", r.NewPassword},
	)
}

// SolveRequest is the body of POST /riddle/solve/{id}.
type SolveRequest struct {
	Answer string `json:"answer"`
}

// Validate checks presence.
func (r *SolveRequest) Validate() error {
	return required(field{"answer", r.Answer})
}

// RegisterResponse answers a registration.
type RegisterResponse struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Warnings []string `json:"warnings,omitempty"`
}

// ActivateResponse carries the first session and the one-time recovery keys.
type ActivateResponse struct {
	Token        string   `json:"token"`
	RecoveryKeys []string `json:"recovery_keys"`
}

// LoginResponse carries a session, or the second factors still required.
type LoginResponse struct {
	Username   string              `json:"username"`
	Role       auth.Role           `json:"role"`
	Token      string              `json:"token,omitempty"`
	ExpiresAt  *time.Time          `json:"expires_at,omitempty"`
	MFAMethods []auth.SecondFactor `json:"mfa_methods,omitempty"`
}

func newLoginResponse(res *auth.LoginResult) LoginResponse {
	out := LoginResponse{
		Username:   res.User.Username,
		Role:       res.User.Role,
		Token:      res.Token,
		MFAMethods: res.SecondFactors,
	}
	if res.Claims != nil && res.Claims.ExpiresAt != nil {
		exp := res.Claims.ExpiresAt.Time
		out.ExpiresAt = &exp
	}
	return out
}

// SessionResponse describes the presented token.
type SessionResponse struct {
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public profile of an account.
type UserResponse struct {
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	Role       auth.Role           `json:"role"`
	Activated  bool                `json:"activated"`
	LastLogin  *time.Time          `json:"last_login,omitempty"`
	MFAMethods []auth.SecondFactor `json:"mfa_methods"`
}

func newUserResponse(u *auth.User) UserResponse {
	methods := u.SecondFactors()
	if methods == nil {
		methods = []auth.SecondFactor{}
	}
	return UserResponse{
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		Activated:  u.Activation.Activated,
		LastLogin:  u.LastLogin,
		MFAMethods: methods,
	}
}

// WhoamiResponse is the profile, game progress and current room.
type WhoamiResponse struct {
	UserResponse
	Progress ProgressResponse `json:"progress"`
	InRoom   RoomResponse     `json:"in_room"`
}

// ProgressResponse summarizes a player's progress.
type ProgressResponse struct {
	GameID       string            `json:"game_id"`
	Score        int64             `json:"score"`
	Level        int               `json:"level"`
	RoomsEntered []string          `json:"rooms_entered"`
	Solved       []string          `json:"solved"`
	Finished     []maze.Completion `json:"finished"`
}

func newProgressResponse(p *maze.Progress) ProgressResponse {
	solved := make([]string, len(p.Solved))
	for i, s := range p.Solved {
		solved[i] = s.RiddleID
	}
	finished := p.Finished
	if finished == nil {
		finished = []maze.Completion{}
	}
	return ProgressResponse{
		GameID:       p.GameID,
		Score:        p.Score(),
		Level:        p.Level,
		RoomsEntered: p.RoomsEntered,
		Solved:       solved,
		Finished:     finished,
	}
}

// DoorResponse is a door as seen from inside a room.
type DoorResponse struct {
	Direction maze.Direction `json:"direction"`
	RiddleID  string         `json:"riddle_id"`
	Solved    bool           `json:"solved"`
}

// RoomResponse is a room as seen by a player. Target rooms stay hidden.
type RoomResponse struct {
	ID     string         `json:"id"`
	Number int            `json:"number"`
	Coords maze.Coords    `json:"coords"`
	Entry  bool           `json:"entry"`
	Exit   bool           `json:"exit"`
	Doors  []DoorResponse `json:"doors"`
}

func newRoomResponse(room *maze.Room, p *maze.Progress) RoomResponse {
	doors := make([]DoorResponse, len(room.Neighbors))
	for i, n := range room.Neighbors {
		doors[i] = DoorResponse{Direction: n.Direction, RiddleID: n.RiddleID, Solved: p.HasSolved(n.RiddleID)}
	}
	return RoomResponse{
		ID:     room.ID,
		Number: room.Number,
		Coords: room.Coords,
		Entry:  room.Entry,
		Exit:   room.Exit,
		Doors:  doors,
	}
}

// MoveResponse answers GET /go/{direction}.
type MoveResponse struct {
	Locked    bool          `json:"locked"`
	Completed bool          `json:"completed"`
	Score     int64         `json:"score"`
	Room      *RoomResponse `json:"room,omitempty"`
}

func newMoveResponse(res *maze.MoveResult) MoveResponse {
	out := MoveResponse{Locked: res.Locked, Completed: res.Completed, Score: res.Progress.Score()}
	if res.Room != nil {
		room := newRoomResponse(res.Room, res.Progress)
		out.Room = &room
	}
	return out
}

// EnterResponse answers PUT /door/enter/{doorId}/with/{key}.
type EnterResponse struct {
	Solve *maze.SolveResult `json:"solve"`
	Move  *MoveResponse     `json:"move,omitempty"`
}

// RiddleAdminResponse is a full riddle, solution included, for designers.
type RiddleAdminResponse struct {
	ID         string          `json:"id"`
	GameID     string          `json:"game_id"`
	Level      int             `json:"level"`
	Task       string          `json:"task"`
	Media      []maze.MediaRef `json:"media"`
	Solution   string          `json:"solution"`
	IgnoreCase bool            `json:"ignore_case"`
	HasChecker bool            `json:"has_checker"`
	Difficulty int64           `json:"difficulty"`
	Deduction  int64           `json:"deduction"`
	Credits    string          `json:"credits"`
	Debriefing string          `json:"debriefing"`
}

func newRiddleAdminResponse(r *maze.Riddle) RiddleAdminResponse {
	media := r.Media
	if media == nil {
		media = []maze.MediaRef{}
	}
	return RiddleAdminResponse{
		ID:         r.ID,
		GameID:     r.GameID,
		Level:      r.Level,
		Task:       r.Task,
		Media:      media,
		Solution:   r.Solution,
		IgnoreCase: r.IgnoreCase,
		HasChecker: r.Checker != "",
		Difficulty: r.Difficulty,
		Deduction:  r.Deduction,
		Credits:    r.Credits,
		Debriefing: r.Debriefing,
	}
}

// CredentialResponse acknowledges a registered authenticator.
type CredentialResponse struct {
	ID        []byte    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
