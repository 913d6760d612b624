// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labyrinth-game/labyrinth/internal/auth"
)

// Route names. Each one has an entry in routeRoles.
const (
	routePing             = "ping"
	routeRegister         = "user.register"
	routeActivate         = "user.activate"
	routeLogin            = "user.login"
	routeAuth             = "user.auth"
	routeLogout           = "user.logout"
	routeWhoami           = "user.whoami"
	routePasswd           = "user.passwd"
	routeRecover          = "user.recover"
	routeTOTPLogin        = "user.totp.login"
	routeTOTPEnable       = "user.totp.enable"
	routeTOTPDisable      = "user.totp.disable"
	routeWebAuthnRegStart = "user.webauthn.register.start"
	routeWebAuthnRegEnd   = "user.webauthn.register.finish"
	routeWebAuthnLogStart = "user.webauthn.login.start"
	routeWebAuthnLogEnd   = "user.webauthn.login.finish"
	routeGo               = "game.go"
	routeDoorInfo         = "door.info"
	routeDoorEnter        = "door.enter"
	routeRiddle           = "riddle.view"
	routeSolve            = "riddle.solve"
	routeDebriefing       = "riddle.debriefing"
	routeStats            = "game.stats"
	routeRiddlesByLevel   = "admin.riddles.by_level"
	routePromote          = "admin.promote"
)

// routeRoles is the minimum role of every named route. A route missing from
// the table is refused.
var routeRoles = map[string]auth.Role{
	routePing:             auth.RoleAnonymous,
	routeRegister:         auth.RoleAnonymous,
	routeActivate:         auth.RoleAnonymous,
	routeLogin:            auth.RoleAnonymous,
	routeAuth:             auth.RoleUser,
	routeLogout:           auth.RoleUser,
	routeWhoami:           auth.RoleUser,
	routePasswd:           auth.RoleUser,
	routeRecover:          auth.RoleAnonymous,
	routeTOTPLogin:        auth.RoleAnonymous,
	routeTOTPEnable:       auth.RoleUser,
	routeTOTPDisable:      auth.RoleUser,
	routeWebAuthnRegStart: auth.RoleUser,
	routeWebAuthnRegEnd:   auth.RoleUser,
	routeWebAuthnLogStart: auth.RoleAnonymous,
	routeWebAuthnLogEnd:   auth.RoleAnonymous,
	routeGo:               auth.RoleUser,
	routeDoorInfo:         auth.RoleUser,
	routeDoorEnter:        auth.RoleUser,
	routeRiddle:           auth.RoleUser,
	routeSolve:            auth.RoleUser,
	routeDebriefing:       auth.RoleUser,
	routeStats:            auth.RoleUser,
	routeRiddlesByLevel:   auth.RoleDesigner,
	routePromote:          auth.RoleAdmin,
}

type route struct {
	name    string
	path    string
	methods []string
	handler http.HandlerFunc
}

func (a *API) routes() []route {
	return []route{
		{routePing, "/ping", []string{http.MethodGet}, a.ping},

		{routeRegister, "/user/register", []string{http.MethodPost}, a.register},
		{routeActivate, "/user/activate", []string{http.MethodPost}, a.activate},
		{routeLogin, "/user/login", []string{http.MethodPost, http.MethodGet}, a.login},
		{routeAuth, "/user/auth", []string{http.MethodGet}, a.session},
		{routeLogout, "/user/logout", []string{http.MethodGet}, a.logout},
		{routeWhoami, "/user/whoami", []string{http.MethodGet}, a.whoami},
		{routePasswd, "/user/passwd", []string{http.MethodPost}, a.changePassword},
		{routeRecover, "/user/recover", []string{http.MethodPost}, a.recoverAccount},

		{routeTOTPLogin, "/user/totp/login", []string{http.MethodPost}, a.totpLogin},
		{routeTOTPEnable, "/user/totp/enable", []string{http.MethodPost}, a.totpEnable},
		{routeTOTPDisable, "/user/totp/disable", []string{http.MethodPost}, a.totpDisable},

		{routeWebAuthnRegStart, "/user/webauthn/register/start", []string{http.MethodPost}, a.webauthnRegisterStart},
		{routeWebAuthnRegEnd, "/user/webauthn/register/finish", []string{http.MethodPost}, a.webauthnRegisterFinish},
		{routeWebAuthnLogStart, "/user/webauthn/login/start/{username}", []string{http.MethodPost}, a.webauthnLoginStart},
		{routeWebAuthnLogEnd, "/user/webauthn/login/finish/{username}", []string{http.MethodPost}, a.webauthnLoginFinish},

		{routeGo, "/go/{direction}", []string{http.MethodGet}, a.move},
		{routeDoorInfo, "/door/info/{doorId}", []string{http.MethodGet}, a.doorInfo},
		{routeDoorEnter, "/door/enter/{doorId}/with/{key}", []string{http.MethodPut}, a.doorEnter},
		{routeRiddle, "/riddle/{id}", []string{http.MethodGet}, a.riddle},
		{routeSolve, "/riddle/solve/{id}", []string{http.MethodPost}, a.solve},
		{routeDebriefing, "/riddle/debriefing/{id}", []string{http.MethodGet}, a.debriefing},
		{routeStats, "/game/stats/{id}", []string{http.MethodGet}, a.stats},

		{routeRiddlesByLevel, "/admin/riddle/by/level/{level}", []string{http.MethodGet}, a.riddlesByLevel},
		{routePromote, "/admin/promote/{username}/{role}", []string{http.MethodPut}, a.promote},
	}
}

// router builds the mux with every route named and guarded.
func (a *API) router() *mux.Router {
	r := mux.NewRouter()
	for _, rt := range a.routes() {
		r.HandleFunc(rt.path, rt.handler).Methods(rt.methods...).Name(rt.name)
	}
	r.Use(a.observe, a.authorize)
	r.NotFoundHandler = a.observe(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		a.respond.error(w, req, errNotFound())
	}))
	r.MethodNotAllowedHandler = a.observe(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		a.respond.error(w, req, errMethodNotAllowed())
	}))
	return r
}
