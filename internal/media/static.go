// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package media

import (
	"context"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// CodeInvalidRef marks a media reference that cannot be resolved.
const CodeInvalidRef = "MEDIA_INVALID_REF"

// StaticResolver resolves references relative to a base URL.
type StaticResolver struct {
	base *url.URL
}

// NewStaticResolver parses baseURL. A relative base such as "/media/" is
// allowed.
func NewStaticResolver(baseURL string) (*StaticResolver, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, oops.Code("MEDIA_INVALID_BASE_URL").With("base_url", baseURL).Wrap(err)
	}
	return &StaticResolver{base: base}, nil
}

// Resolve joins the reference key onto the base URL.
func (r *StaticResolver) Resolve(_ context.Context, ref maze.MediaRef) (string, error) {
	key, err := cleanKey(ref)
	if err != nil {
		return "", err
	}
	return r.base.JoinPath(key).String(), nil
}

// cleanKey rejects empty keys and keys escaping the media root.
func cleanKey(ref maze.MediaRef) (string, error) {
	key := strings.TrimLeft(ref.Key, "/")
	if key == "" {
		return "", errutil.Validation(CodeInvalidRef).With("name", ref.Name).Errorf("media reference has no key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", errutil.Validation(CodeInvalidRef).With("key", ref.Key).Errorf("media key must not contain '..'")
		}
	}
	return key, nil
}

// Compile-time interface check.
var _ maze.MediaResolver = (*StaticResolver)(nil)
