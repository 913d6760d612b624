// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package media

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/internal/maze"
)

// S3Config locates the bucket holding riddle media.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO. Path-style
	// addressing is used when set.
	Endpoint string
	// AccessKey and SecretKey are optional; the default AWS credential
	// chain is used when empty.
	AccessKey string
	SecretKey string
	TTL       time.Duration
}

// Presigner signs GET requests. *s3.PresignClient implements it.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Resolver resolves references to presigned GET URLs.
type S3Resolver struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

// NewS3Resolver loads AWS configuration and builds a presigning client.
func NewS3Resolver(ctx context.Context, cfg S3Config) (*S3Resolver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Code("MEDIA_S3_CONFIG_FAILED").With("region", cfg.Region).Wrap(err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ResolverWithPresigner(s3.NewPresignClient(client), cfg.Bucket, cfg.TTL), nil
}

// NewS3ResolverWithPresigner creates a resolver around an existing presigner.
func NewS3ResolverWithPresigner(p Presigner, bucket string, ttl time.Duration) *S3Resolver {
	return &S3Resolver{presigner: p, bucket: bucket, ttl: ttl}
}

// Resolve presigns a GET for the reference key.
func (r *S3Resolver) Resolve(ctx context.Context, ref maze.MediaRef) (string, error) {
	key, err := cleanKey(ref)
	if err != nil {
		return "", err
	}
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", oops.Code("MEDIA_PRESIGN_FAILED").With("bucket", r.bucket).With("key", key).Wrap(err)
	}
	return req.URL, nil
}

// Compile-time interface check.
var _ maze.MediaResolver = (*S3Resolver)(nil)
