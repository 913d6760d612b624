// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package media_test

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinth-game/labyrinth/internal/maze"
	"github.com/labyrinth-game/labyrinth/internal/media"
	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

func TestStaticResolver(t *testing.T) {
	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{"relative base", "/media/", "img/sphinx.png", "/media/img/sphinx.png"},
		{"absolute base", "https://cdn.example.com/game", "img/sphinx.png", "https://cdn.example.com/game/img/sphinx.png"},
		{"leading slash in key", "/media", "/audio/wind.ogg", "/media/audio/wind.ogg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := media.NewStaticResolver(tt.base)
			require.NoError(t, err)

			got, err := r.Resolve(context.Background(), maze.MediaRef{Key: tt.key})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticResolver_RejectsBadKeys(t *testing.T) {
	r, err := media.NewStaticResolver("/media/")
	require.NoError(t, err)

	for _, key := range []string{"", "/", "../secrets", "img/../../etc/passwd"} {
		_, err := r.Resolve(context.Background(), maze.MediaRef{Name: "x", Key: key})
		errutil.AssertErrorCode(t, err, media.CodeInvalidRef)
		errutil.AssertErrorKind(t, err, errutil.KindValidation)
	}
}

type fakePresigner struct {
	input *s3.GetObjectInput
	opts  s3.PresignOptions
	err   error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.input = in
	for _, fn := range optFns {
		fn(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key}, nil
}

func TestS3Resolver_PresignsBucketKey(t *testing.T) {
	p := &fakePresigner{}
	r := media.NewS3ResolverWithPresigner(p, "riddles", 5*time.Minute)

	got, err := r.Resolve(context.Background(), maze.MediaRef{Key: "img/sphinx.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/img/sphinx.png", got)
	assert.Equal(t, "riddles", *p.input.Bucket)
	assert.Equal(t, "img/sphinx.png", *p.input.Key)
	assert.Equal(t, 5*time.Minute, p.opts.Expires)
}

func TestS3Resolver_PresignFailure(t *testing.T) {
	cause := errors.New("no credentials")
	r := media.NewS3ResolverWithPresigner(&fakePresigner{err: cause}, "riddles", time.Minute)

	_, err := r.Resolve(context.Background(), maze.MediaRef{Key: "img/sphinx.png"})
	require.ErrorIs(t, err, cause)
	errutil.AssertErrorCode(t, err, "MEDIA_PRESIGN_FAILED")
}

func TestS3Resolver_BadKeyNeverPresigns(t *testing.T) {
	p := &fakePresigner{}
	r := media.NewS3ResolverWithPresigner(p, "riddles", time.Minute)

	_, err := r.Resolve(context.Background(), maze.MediaRef{Key: "../x"})
	errutil.AssertErrorCode(t, err, media.CodeInvalidRef)
	assert.Nil(t, p.input)
}

func TestNewS3Resolver_SignsOffline(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	r, err := media.NewS3Resolver(context.Background(), media.S3Config{
		Bucket:    "labyrinth",
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		TTL:       15 * time.Minute,
	})
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), maze.MediaRef{Key: "img/sphinx.png"})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/labyrinth/img/sphinx.png", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
