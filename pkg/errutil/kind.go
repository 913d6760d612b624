// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package errutil

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Kind classifies an error for callers that must decide how to react to it
// (HTTP status mapping, automatic retries).
type Kind string

// Error kinds. An error without a kind tag is Internal.
const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimited    Kind = "rate_limited"
	KindTransient      Kind = "transient"
	KindInternal       Kind = "internal"
)

var knownKinds = map[string]Kind{
	string(KindValidation):     KindValidation,
	string(KindAuthentication): KindAuthentication,
	string(KindAuthorization):  KindAuthorization,
	string(KindNotFound):       KindNotFound,
	string(KindConflict):       KindConflict,
	string(KindRateLimited):    KindRateLimited,
	string(KindTransient):      KindTransient,
}

// Validation starts an error builder for malformed or out-of-policy input.
func Validation(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindValidation))
}

// Authentication starts an error builder for bad credentials or second factors.
func Authentication(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindAuthentication))
}

// Authorization starts an error builder for valid sessions lacking access.
func Authorization(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindAuthorization))
}

// NotFound starts an error builder for unknown resources.
func NotFound(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindNotFound))
}

// Conflict starts an error builder for uniqueness violations.
func Conflict(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindConflict))
}

// RateLimited starts an error builder for throttled callers.
func RateLimited(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindRateLimited))
}

// Transient starts an error builder for failures that are safe to retry.
func Transient(code string) oops.OopsErrorBuilder {
	return oops.Code(code).Tags(string(KindTransient))
}

// KindOf returns the outermost kind tagged anywhere in err's chain.
// Context cancellation and deadline errors are reported as Transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		for _, tag := range oopsErr.Tags() {
			if kind, known := knownKinds[tag]; known {
				return kind
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err may be retried automatically.
// Only transient failures qualify.
func IsRetryable(err error) bool {
	return Is(err, KindTransient)
}

// CodeOf returns the oops code of err as a string, or "" when absent.
func CodeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
