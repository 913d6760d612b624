// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

//go:build integration

package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/pquerna/otp/totp"

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/maze/mazetest"
	mazepg "github.com/labyrinth-game/labyrinth/internal/maze/postgres"
	"github.com/labyrinth-game/labyrinth/internal/web"
)

const password = "correct horse battery"

var _ = Describe("Labyrinth API", func() {
	var s *stack

	BeforeEach(func() {
		cleanupDatabase(env.ctx)
		def, err := maze.ParseDefinition(mazetest.TutorialYAML)
		Expect(err).NotTo(HaveOccurred())
		Expect(mazepg.NewGameWriter(env.pg.Pool).SaveGame(env.ctx, def.Compile())).To(Succeed())
		s = newStack(3)
	})

	Describe("account lifecycle", func() {
		It("places a newly activated player in the entry room", func() {
			activated := s.signup("ariadne", password)
			Expect(activated.Token).NotTo(BeEmpty())
			Expect(activated.RecoveryKeys).NotTo(BeEmpty())

			res := s.do(http.MethodGet, "/user/whoami", activated.Token, nil)
			Expect(res.status).To(Equal(http.StatusOK))
			var who web.WhoamiResponse
			res.decode(&who)
			Expect(who.Username).To(Equal("ariadne"))
			Expect(who.InRoom.ID).To(Equal("hall"))
		})

		It("rejects a second account with the same username", func() {
			s.signup("ariadne", password)

			res := s.do(http.MethodPost, "/user/register", "", web.RegisterRequest{
				Username: "ariadne", Email: "other@example.com", Password: password,
			})
			Expect(res.status).To(Equal(http.StatusConflict))
			Expect(res.errorCode()).To(Equal(auth.CodeUsernameTaken))
		})

		It("locks the account after repeated wrong passwords", func() {
			s.signup("ariadne", password)

			for range 3 {
				res := s.do(http.MethodPost, "/user/login", "", web.LoginRequest{Username: "ariadne", Password: "wrong password!"})
				Expect(res.status).To(Equal(http.StatusUnauthorized))
			}
			for _, attempt := range []string{"wrong password!", password} {
				res := s.do(http.MethodPost, "/user/login", "", web.LoginRequest{Username: "ariadne", Password: attempt})
				Expect(res.status).To(Equal(http.StatusTooManyRequests))
				Expect(res.errorCode()).To(Equal(auth.CodeAccountLocked))
			}
		})

		It("requires the one-time code once TOTP is enabled", func() {
			token := s.signup("ariadne", password).Token

			res := s.do(http.MethodPost, "/user/totp/enable", token, nil)
			Expect(res.status).To(Equal(http.StatusOK))
			var prov auth.TOTPProvisioning
			res.decode(&prov)
			Expect(prov.Secret).NotTo(BeEmpty())

			now := time.Now()
			code, err := totp.GenerateCode(prov.Secret, now)
			Expect(err).NotTo(HaveOccurred())
			res = s.do(http.MethodPost, "/user/totp/enable", token, web.TOTPCodeRequest{Code: code})
			Expect(res.status).To(Equal(http.StatusNoContent), string(res.body))

			res = s.do(http.MethodPost, "/user/login", "", web.LoginRequest{Username: "ariadne", Password: password})
			Expect(res.status).To(Equal(http.StatusOK))
			var pending web.LoginResponse
			res.decode(&pending)
			Expect(pending.Token).To(BeEmpty())
			Expect(pending.MFAMethods).To(ConsistOf(auth.SecondFactorTOTP))

			// The enrolment code's step is spent; the next step is still in the window.
			next, err := totp.GenerateCode(prov.Secret, now.Add(30*time.Second))
			Expect(err).NotTo(HaveOccurred())
			res = s.do(http.MethodPost, "/user/totp/login", "", web.TOTPLoginRequest{Username: "ariadne", Code: next})
			Expect(res.status).To(Equal(http.StatusOK), string(res.body))
			var login web.LoginResponse
			res.decode(&login)
			Expect(login.Token).NotTo(BeEmpty())

			res = s.do(http.MethodPost, "/user/totp/login", "", web.TOTPLoginRequest{Username: "ariadne", Code: next})
			Expect(res.status).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("playing the tutorial", func() {
		It("walks from the hall to the tower", func() {
			token := s.signup("theseus", password).Token

			res := s.do(http.MethodGet, "/go/e", token, nil)
			Expect(res.status).To(Equal(http.StatusOK))
			var move web.MoveResponse
			res.decode(&move)
			Expect(move.Locked).To(BeTrue())

			res = s.do(http.MethodPost, "/riddle/solve/answer", token, web.SolveRequest{Answer: "42"})
			Expect(res.status).To(Equal(http.StatusOK), string(res.body))

			res = s.do(http.MethodGet, "/go/e", token, nil)
			res.decode(&move)
			Expect(move.Locked).To(BeFalse())
			Expect(move.Room.ID).To(Equal("library"))

			res = s.do(http.MethodPut, "/door/enter/n/with/paris", token, nil)
			Expect(res.status).To(Equal(http.StatusOK), string(res.body))
			var entered web.EnterResponse
			res.decode(&entered)
			Expect(entered.Move).NotTo(BeNil())
			Expect(entered.Move.Completed).To(BeTrue())
			Expect(entered.Move.Score).To(Equal(int64(30)))

			res = s.do(http.MethodGet, "/riddle/debriefing/answer", token, nil)
			Expect(res.status).To(Equal(http.StatusOK))
		})

		It("keeps progress across API nodes", func() {
			token := s.signup("theseus", password).Token
			res := s.do(http.MethodPost, "/riddle/solve/answer", token, web.SolveRequest{Answer: "42"})
			Expect(res.status).To(Equal(http.StatusOK))

			other := newStack(3)
			res = other.do(http.MethodGet, "/go/e", token, nil)
			Expect(res.status).To(Equal(http.StatusOK))
			var move web.MoveResponse
			res.decode(&move)
			Expect(move.Room.ID).To(Equal("library"))
		})
	})
})
