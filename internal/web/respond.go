// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/labyrinth-game/labyrinth/pkg/errutil"
)

// Error codes produced by the HTTP layer itself.
const (
	CodeMalformedRequest = "HTTP_MALFORMED_REQUEST"
	CodeUnauthenticated  = "HTTP_UNAUTHENTICATED"
	CodeForbidden        = "HTTP_FORBIDDEN"
	CodeTooManyRequests  = "HTTP_TOO_MANY_REQUESTS"
	CodeNotFound         = "HTTP_NOT_FOUND"
	CodeMethodNotAllowed = "HTTP_METHOD_NOT_ALLOWED"
	CodeInternal         = "HTTP_INTERNAL"
)

var kindStatus = map[errutil.Kind]int{
	errutil.KindValidation:     http.StatusBadRequest,
	errutil.KindAuthentication: http.StatusUnauthorized,
	errutil.KindAuthorization:  http.StatusForbidden,
	errutil.KindNotFound:       http.StatusNotFound,
	errutil.KindConflict:       http.StatusConflict,
	errutil.KindRateLimited:    http.StatusTooManyRequests,
	errutil.KindTransient:      http.StatusServiceUnavailable,
	errutil.KindInternal:       http.StatusInternalServerError,
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	if status, ok := kindStatus[errutil.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responder struct {
	logger *slog.Logger
}

func (rs responder) json(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rs.logger.Debug("write response", "error", err)
	}
}

// error renders err. Internal errors are logged with their context and
// reported with a generic message.
func (rs responder) error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	code := errutil.CodeOf(err)
	message := publicMessage(err)

	switch status {
	case http.StatusInternalServerError:
		errutil.LogErrorContext(r.Context(), rs.logger, "request failed", err, "method", r.Method, "path", r.URL.Path)
		code, message = CodeInternal, "internal error"
	case http.StatusServiceUnavailable:
		errutil.LogWarnContext(r.Context(), rs.logger, "request failed", err, "method", r.Method, "path", r.URL.Path)
		message = "service temporarily unavailable"
	}
	if code == "" {
		code = CodeInternal
	}
	rs.json(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// publicMessage prefers an explicit public message over the error text.
func publicMessage(err error) string {
	if o, ok := oops.AsOops(err); ok && o.Public() != "" {
		return o.Public()
	}
	return err.Error()
}
