// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

//go:build integration

package mongo_test

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/labyrinth-game/labyrinth/internal/auth"
	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/maze/mazetest"
)

func createUser(username string) *auth.User {
	user, err := auth.NewUser(username, username+"@example.com", "$argon2id$hash", time.Now().UTC().Truncate(time.Millisecond))
	Expect(err).NotTo(HaveOccurred())
	Expect(store.Users().Create(ctx, user)).To(Succeed())
	return user
}

func publishTutorial() {
	def, err := maze.ParseDefinition(mazetest.TutorialYAML)
	Expect(err).NotTo(HaveOccurred())
	Expect(store.Games().SaveGame(ctx, def.Compile())).To(Succeed())
}

var _ = Describe("UserRepository", func() {
	It("round-trips second factors and credentials", func() {
		created := createUser("ariadne")
		now := time.Now().UTC().Truncate(time.Millisecond)

		updated, err := store.Users().Update(ctx, "ariadne", func(u *auth.User) error {
			u.Activation.Activated = true
			u.TOTPSecret = "JBSWY3DPEHPK3PXP"
			u.RecoveryKeyHashes = []string{"aa", "bb"}
			u.WebAuthnCredentials = append(u.WebAuthnCredentials, auth.WebAuthnCredential{
				ID:        []byte{1, 2, 3},
				PublicKey: []byte("key"),
				SignCount: 3,
				CreatedAt: now,
			})
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Version).To(Equal(created.Version + 1))

		got, err := store.Users().GetByUsername(ctx, "ariadne")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(created.ID))
		Expect(got.Activation.Activated).To(BeTrue())
		Expect(got.TOTPSecret).To(Equal("JBSWY3DPEHPK3PXP"))
		Expect(got.RecoveryKeyHashes).To(Equal([]string{"aa", "bb"}))
		Expect(got.WebAuthnCredentials).To(HaveLen(1))

		owner, err := store.Users().CredentialOwner(ctx, []byte{1, 2, 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(owner).To(Equal("ariadne"))
	})

	It("rejects duplicate usernames and emails", func() {
		createUser("ariadne")

		dup, err := auth.NewUser("ariadne", "other@example.com", "hash", time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(errors.Is(store.Users().Create(ctx, dup), auth.ErrDuplicate)).To(BeTrue())

		dup, err = auth.NewUser("minos", "ARIADNE@example.com", "hash", time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(errors.Is(store.Users().Create(ctx, dup), auth.ErrDuplicate)).To(BeTrue())
	})

	It("reports unknown users as not found", func() {
		_, err := store.Users().GetByUsername(ctx, "nobody")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("serializes concurrent updates", func() {
		createUser("ariadne")

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := store.Users().Update(ctx, "ariadne", func(u *auth.User) error {
					u.FailedAttempts++
					return nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		got, err := store.Users().GetByUsername(ctx, "ariadne")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.FailedAttempts).To(Equal(5))
	})
})

var _ = Describe("maze repositories", func() {
	BeforeEach(publishTutorial)

	It("reads the published graph", func() {
		entry, err := store.Rooms().Entry(ctx, mazetest.TutorialGameID)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.ID).To(Equal("hall"))
		Expect(entry.Neighbors).To(HaveLen(2))

		rooms, err := store.Rooms().ListByGame(ctx, mazetest.TutorialGameID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rooms).To(HaveLen(4))
		Expect(rooms[0].Number).To(Equal(1))

		riddle, err := store.Riddles().Get(ctx, "sevens")
		Expect(err).NotTo(HaveOccurred())
		Expect(riddle.Checker).To(ContainSubstring("function check"))

		byLevel, err := store.Riddles().ListByLevel(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(byLevel).To(HaveLen(1))
		Expect(byLevel[0].ID).To(Equal("capital"))
	})

	It("replaces a game when it is published again", func() {
		publishTutorial()

		rooms, err := store.Rooms().ListByGame(ctx, mazetest.TutorialGameID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rooms).To(HaveLen(4))
	})

	It("plays the tutorial with progress embedded in the user document", func() {
		createUser("theseus")
		engine, err := maze.NewEngine(maze.EngineDeps{
			Rooms:         store.Rooms(),
			Riddles:       store.Riddles(),
			Progress:      store.Progress(),
			DefaultGameID: mazetest.TutorialGameID,
		})
		Expect(err).NotTo(HaveOccurred())

		res, err := engine.Go(ctx, "theseus", maze.East)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Locked).To(BeTrue())

		solved, err := engine.Solve(ctx, "theseus", "answer", "42")
		Expect(err).NotTo(HaveOccurred())
		Expect(solved.Solved).To(BeTrue())

		res, err = engine.Go(ctx, "theseus", maze.East)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Room.ID).To(Equal("library"))

		stored, err := store.Progress().Get(ctx, "theseus")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.CurrentRoom).To(Equal("library"))
		Expect(stored.Score()).To(Equal(int64(10)))
		Expect(stored.RoomsEntered).To(ConsistOf("hall", "library"))

		// Account updates must not clobber the embedded progress.
		_, err = store.Users().Update(ctx, "theseus", func(u *auth.User) error {
			u.FailedAttempts = 1
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		stored, err = store.Progress().Get(ctx, "theseus")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.CurrentRoom).To(Equal("library"))
	})
})
