package web

// errors.go turns errors into JSON responses.
//
// The technical error is logged with the request id; the client receives
// the mapped user message and support code from apperr.Map.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/tickets/internal/apperr"
	"github.com/JonMunkholm/tickets/internal/logging"
	"github.com/JonMunkholm/tickets/internal/reader"
	"github.com/JonMunkholm/tickets/internal/store"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	RunID   string `json:"run_id,omitempty"`
}

// respondError logs err and writes its user-facing form. A zero status is
// derived from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	respondRunError(w, r, err, status, "")
}

// respondRunError is respondError for a failed pipeline run.
func respondRunError(w http.ResponseWriter, r *http.Request, err error, status int, runID string) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := apperr.Map(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	})
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, reader.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	}

	switch apperr.Kind(err) {
	case "config":
		return http.StatusBadRequest
	case "read", "processing":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
