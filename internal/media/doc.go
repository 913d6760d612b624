// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

// Package media turns riddle media references into URLs clients can fetch.
// StaticResolver serves them from a fixed base URL; S3Resolver issues
// short-lived presigned GET URLs for objects in a bucket.
package media
