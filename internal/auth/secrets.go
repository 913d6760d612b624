// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/samber/oops"
)

// Recovery key shape: RecoveryKeyCount keys of four dash-separated groups.
const (
	RecoveryKeyCount  = 10
	recoveryGroups    = 4
	recoveryGroupLen  = 4
	recoveryAlphabet  = "abcdefghijkmnopqrstuvwxyz0123456789"
	pinUpperExclusive = 999999
)

// GeneratePIN returns a random six-digit activation PIN in 000001..999999.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinUpperExclusive))
	if err != nil {
		return "", oops.Code("AUTH_PIN_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+1), nil
}

// VerifyPIN compares a submitted PIN with the stored one in constant time.
func VerifyPIN(submitted, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(submitted)), []byte(stored)) == 1
}

// GenerateRecoveryKeys returns RecoveryKeyCount plaintext keys and their
// SHA-256 digests. Only the digests are stored.
func GenerateRecoveryKeys() (keys, hashes []string, err error) {
	keys = make([]string, RecoveryKeyCount)
	hashes = make([]string, RecoveryKeyCount)
	alphabetLen := big.NewInt(int64(len(recoveryAlphabet)))

	for i := range keys {
		var b strings.Builder
		for g := range recoveryGroups {
			if g > 0 {
				b.WriteByte('-')
			}
			for range recoveryGroupLen {
				n, randErr := rand.Int(rand.Reader, alphabetLen)
				if randErr != nil {
					return nil, nil, oops.Code("AUTH_RECOVERY_GENERATE_FAILED").Wrap(randErr)
				}
				b.WriteByte(recoveryAlphabet[n.Int64()])
			}
		}
		keys[i] = b.String()
		hashes[i] = HashRecoveryKey(keys[i])
	}
	return keys, hashes, nil
}

// HashRecoveryKey returns the hex SHA-256 digest of a normalized key.
func HashRecoveryKey(key string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(key))))
	return hex.EncodeToString(h[:])
}

// MatchRecoveryKey returns the index of the stored digest matching key, or -1.
// Every digest is compared so the timing does not depend on the position.
func MatchRecoveryKey(key string, hashes []string) int {
	if key == "" {
		return -1
	}
	computed := []byte(HashRecoveryKey(key))
	match := -1
	for i, h := range hashes {
		if subtle.ConstantTimeCompare(computed, []byte(h)) == 1 {
			match = i
		}
	}
	return match
}
