// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

//go:build integration

package cli_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("CLI", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx)
	})

	Describe("seed", func() {
		It("publishes the rooms, doors and riddles of a maze", func() {
			output, err := labyrinth(ctx, "seed", tutorialPath())
			Expect(err).NotTo(HaveOccurred(), "seed failed: %s", output)
			Expect(output).To(ContainSubstring(`Published game "default" (Tutorial): 4 rooms, 3 riddles`))

			var rooms, doors, riddles int
			Expect(env.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE game_id = 'default'`).Scan(&rooms)).To(Succeed())
			Expect(env.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM room_neighbors`).Scan(&doors)).To(Succeed())
			Expect(env.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM riddles WHERE game_id = 'default'`).Scan(&riddles)).To(Succeed())
			Expect(rooms).To(Equal(4))
			Expect(doors).To(Equal(6))
			Expect(riddles).To(Equal(3))
		})

		It("is idempotent (running twice succeeds without duplicates)", func() {
			output, err := labyrinth(ctx, "seed", tutorialPath())
			Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", output)
			output, err = labyrinth(ctx, "seed", tutorialPath())
			Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", output)

			var rooms int
			Expect(env.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&rooms)).To(Succeed())
			Expect(rooms).To(Equal(4))
		})
	})

	Describe("migrate version", func() {
		It("reports the fully migrated schema", func() {
			output, err := labyrinth(ctx, "migrate", "version")
			Expect(err).NotTo(HaveOccurred(), "migrate version failed: %s", output)
			Expect(output).To(ContainSubstring("Schema version: 2 (000002_maze)"))
			Expect(output).To(ContainSubstring("Pending migrations: 0"))
		})
	})

	Describe("validate-maze", func() {
		It("accepts the tutorial without a database", func() {
			output, err := labyrinth(ctx, "validate-maze", tutorialPath())
			Expect(err).NotTo(HaveOccurred(), "validate-maze failed: %s", output)
			Expect(output).To(ContainSubstring("ok"))
		})
	})
})
