// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package auth

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // digest format of the leaked-password list, not used for secrecy
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
)

// BreachChecker reports whether a password appears in a list of leaked passwords.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) (bool, error)
}

// NoBreachCheck accepts every password.
type NoBreachCheck struct{}

// IsBreached always returns false.
func (NoBreachCheck) IsBreached(context.Context, string) (bool, error) {
	return false, nil
}

// FileBreachChecker searches a file of uppercase hex MD5 digests, one per
// line, sorted ascending and of equal line length. Lookups binary-search the
// file without loading it.
type FileBreachChecker struct {
	path string
}

// NewFileBreachChecker creates a checker over the file at path.
func NewFileBreachChecker(path string) *FileBreachChecker {
	return &FileBreachChecker{path: path}
}

// md5HexLen is the length of a hex MD5 digest.
const md5HexLen = 32

// IsBreached returns true when the password's digest is listed.
func (c *FileBreachChecker) IsBreached(_ context.Context, password string) (bool, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return false, oops.Code("AUTH_BREACH_LIST_UNAVAILABLE").With("path", c.path).Wrap(err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	info, err := f.Stat()
	if err != nil {
		return false, oops.Code("AUTH_BREACH_LIST_UNAVAILABLE").With("path", c.path).Wrap(err)
	}

	sum := md5.Sum([]byte(password)) //nolint:gosec // see import
	target := []byte(strings.ToUpper(hex.EncodeToString(sum[:])))

	return searchSortedDigests(f, info.Size(), target)
}

// searchSortedDigests binary-searches fixed-width lines. The line width is
// detected from the first line so both LF and CRLF files work.
func searchSortedDigests(r io.ReaderAt, size int64, target []byte) (bool, error) {
	head := make([]byte, md5HexLen+2)
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return false, oops.Code("AUTH_BREACH_LIST_UNREADABLE").Wrap(err)
	}
	if n < md5HexLen {
		return false, nil
	}
	width := int64(md5HexLen + 1)
	if n > md5HexLen && head[md5HexLen] == '\r' {
		width++
	}

	lines := (size + 1) / width
	line := make([]byte, md5HexLen)
	lo, hi := int64(0), lines-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if _, err := r.ReadAt(line, mid*width); err != nil && err != io.EOF {
			return false, oops.Code("AUTH_BREACH_LIST_UNREADABLE").Wrap(err)
		}
		switch cmp := bytes.Compare(line, target); {
		case cmp == 0:
			return true, nil
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return false, nil
}
