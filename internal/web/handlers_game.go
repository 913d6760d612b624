// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// direction parses the named path variable. Door IDs are directions of the
// current room.
func direction(r *http.Request, name string) (maze.Direction, error) {
	return maze.ParseDirection(mux.Vars(r)[name])
}

// move answers 200 for a locked door too; Locked tells the client.
func (a *API) move(w http.ResponseWriter, r *http.Request) {
	dir, err := direction(r, "direction")
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	res, err := a.game.Go(r.Context(), mustClaims(r).Username(), dir)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, newMoveResponse(res))
}

func (a *API) doorInfo(w http.ResponseWriter, r *http.Request) {
	dir, err := direction(r, "doorId")
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	info, err := a.game.DoorInfo(r.Context(), mustClaims(r).Username(), dir)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, info)
}

func (a *API) doorEnter(w http.ResponseWriter, r *http.Request) {
	dir, err := direction(r, "doorId")
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	res, err := a.game.EnterDoor(r.Context(), mustClaims(r).Username(), dir, mux.Vars(r)["key"])
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	out := EnterResponse{Solve: res.Solve}
	if res.Move != nil {
		move := newMoveResponse(res.Move)
		out.Move = &move
	}
	a.respond.json(w, http.StatusOK, out)
}

func (a *API) riddle(w http.ResponseWriter, r *http.Request) {
	view, err := a.game.Riddle(r.Context(), mustClaims(r).Username(), mux.Vars(r)["id"])
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, view)
}

func (a *API) solve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := decode(r, &req); err != nil {
		a.respond.error(w, r, err)
		return
	}
	res, err := a.game.Solve(r.Context(), mustClaims(r).Username(), mux.Vars(r)["id"], req.Answer)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, res)
}

func (a *API) debriefing(w http.ResponseWriter, r *http.Request) {
	d, err := a.game.Debriefing(r.Context(), mustClaims(r).Username(), mux.Vars(r)["id"])
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, d)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.game.Stats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	a.respond.json(w, http.StatusOK, stats)
}

func (a *API) riddlesByLevel(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["level"]
	level, err := strconv.Atoi(raw)
	if err != nil {
		a.respond.error(w, r, errutil.Validation(maze.CodeInvalidLevel).With("level", raw).Errorf("level must be an integer"))
		return
	}
	riddles, err := a.game.RiddlesByLevel(r.Context(), level)
	if err != nil {
		a.respond.error(w, r, err)
		return
	}
	out := make([]RiddleAdminResponse, len(riddles))
	for i, rd := range riddles {
		out[i] = newRiddleAdminResponse(rd)
	}
	a.respond.json(w, http.StatusOK, out)
}
