// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth_test

import (
	"context"
	"crypto/md5" //nolint:gosec // matches the list format
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/auth"
)

func writeDigestList(t *testing.T, newline string, passwords ...string) string {
	t.Helper()
	digests := make([]string, 0, len(passwords))
	for _, p := range passwords {
		sum := md5.Sum([]byte(p)) //nolint:gosec // see import
		digests = append(digests, strings.ToUpper(hex.EncodeToString(sum[:])))
	}
	sort.Strings(digests)
	path := filepath.Join(t.TempDir(), "breached.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(digests, newline)+newline), 0o600))
	return path
}

func TestFileBreachChecker(t *testing.T) {
	leaked := []string{"password", "123456", "qwertyuiop", "letmein1", "iloveyou", "dragon", "monkey"}

	for name, newline := range map[string]string{"LF": "\n", "CRLF": "\r\n"} {
		t.Run(name, func(t *testing.T) {
			checker := auth.NewFileBreachChecker(writeDigestList(t, newline, leaked...))

			for _, p := range leaked {
				breached, err := checker.IsBreached(context.Background(), p)
				require.NoError(t, err)
				assert.True(t, breached, "expected %q to be listed", p)
			}

			breached, err := checker.IsBreached(context.Background(), "longpassword1")
			require.NoError(t, err)
			assert.False(t, breached)
		})
	}
}

func TestFileBreachChecker_MissingFile(t *testing.T) {
	checker := auth.NewFileBreachChecker(filepath.Join(t.TempDir(), "absent.txt"))
	breached, err := checker.IsBreached(context.Background(), "password")
	require.Error(t, err)
	assert.False(t, breached)
}

func TestFileBreachChecker_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	breached, err := auth.NewFileBreachChecker(path).IsBreached(context.Background(), "password")
	require.NoError(t, err)
	assert.False(t, breached)
}
