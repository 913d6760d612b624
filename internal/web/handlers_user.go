// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// totpHeader carries a one-time code on Basic-auth logins.
const totpHeader = "X-TOTP-Code"

func (a *API) ping(w http.ResponseWriter, _ *http.Request) {
	a.respond.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	res, err := a.accounts.Register(r.Context(), auth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusCreated, RegisterResponse{
		Username: res.User.Username,
		Email:    res.User.Email,
		Warnings: res.Warnings,
	})
}

func (a *API) activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	res, err := a.accounts.Activate(r.Context(), req.Username, req.PIN)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, ActivateResponse{Token: res.Token, RecoveryKeys: res.RecoveryKeys})
}

// login accepts a JSON body on POST and Basic credentials on GET.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if r.Method == http.MethodGet {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="labyrinth"`)
			a.respond.error(w, r, errUnauthenticated())
			return
		}
		req = LoginRequest{Username: username, Password: password, TOTP: r.Header.Get(totpHeader)}
		if err := req.Validate(); err != nil {
			a.respond.error(w, r, err)
			return
		}
	} else if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}

	res, err := a.accounts.Login(r.Context(), req.Username, req.Password, req.TOTP)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, newLoginResponse(res))
}

func (a *API) session(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	out := SessionResponse{Username: claims.Username(), Role: claims.Role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	a.respond.json(w, http.StatusOK, out)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r.Header.Get("Authorization"))
	if err := a.accounts.Logout(r.Context(), token); err != nil {
		a.respond.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) whoami(w http.ResponseWriter, r *http.Request) {
	username := mustClaims(r).Username()
	user, err := a.accounts.GetUser(r.Context(), username)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	progress, room, err := a.game.CurrentRoom(r.Context(), username)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, WhoamiResponse{
		UserResponse: newUserResponse(user),
		Progress:     newProgressResponse(progress),
		InRoom:       newRoomResponse(room, progress),
	})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	if err := a.accounts.ChangePassword(r.Context(), mustClaims(r).Username(), req.OldPassword, req.NewPassword); err != nil {
		a.respond.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) recoverAccount(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	if err := a.accounts.RecoverAccount(r.Context(), req.Username, req.RecoveryKey, req.NewPassword); err != nil {
		a.respond.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) totpLogin(w http.ResponseWriter, r *http.Request) {
	var req TOTPLoginRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	res, err := a.accounts.LoginTOTP(r.Context(), req.Username, req.Code)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, newLoginResponse(res))
}

// totpEnable starts enrolment without a code and confirms it with one.
func (a *API) totpEnable(w http.ResponseWriter, r *http.Request) {
	var req TOTPCodeRequest
	if err := decodeOptional(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	username := mustClaims(r).Username()
	if req.Code == "" {
		prov, err := a.accounts.EnableTOTPStart(r.Context(), username)
		if err != nil {
			a.respond.error(w, r, err)
			return
		}
		a.respond.json(w, http.StatusOK, prov)
		return
	}
	if err := a.accounts.EnableTOTPConfirm(r.Context(), username, req.Code); err != nil {
		a.respond.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) totpDisable(w http.ResponseWriter, r *http.Request) {
	var req TOTPCodeRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	if err := a.accounts.DisableTOTP(r.Context(), mustClaims(r).Username(), req.Code); err != nil {
		a.respond.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) webauthnRegisterStart(w http.ResponseWriter, r *http.Request) {
	creation, err := a.accounts.EnableWebAuthnStart(r.Context(), mustClaims(r).Username())
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, creation)
}

func (a *API) webauthnRegisterFinish(w http.ResponseWriter, r *http.Request) {
	cred, err := a.accounts.EnableWebAuthnFinish(r.Context(), mustClaims(r).Username(), r.Body)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusCreated, CredentialResponse{ID: cred.ID, CreatedAt: cred.CreatedAt})
}

func (a *API) webauthnLoginStart(w http.ResponseWriter, r *http.Request) {
	assertion, err := a.accounts.LoginWebAuthnStart(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, assertion)
}

func (a *API) webauthnLoginFinish(w http.ResponseWriter, r *http.Request) {
	res, err := a.accounts.LoginWebAuthnFinish(r.Context(), mux.Vars(r)["username"], r.Body)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, newLoginResponse(res))
}

func (a *API) promote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role, err := auth.ParseRole(vars["role"])
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	user, err := a.accounts.Promote(r.Context(), mustClaims(r).Username(), vars["username"], role)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, newUserResponse(user))
}

// decodeOptional is decode for bodies that may be empty.
func decodeOptional(r *http.Request, dst validator) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errutil.Validation(CodeMalformedRequest).Wrapf(err, "malformed JSON body")
	}
	return dst.Validate()
}

// mustClaims returns the claims authorize stored. Handlers behind a
// non-anonymous role always have them.
func mustClaims(r *http.Request) *auth.Claims {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		panic("web: handler reached without session claims")
	}
	return claims
}
