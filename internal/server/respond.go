package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"cfs-go/internal/auth"
	"cfs-go/internal/cfs"
	"cfs-go/internal/staging"
)

// retryAfterSeconds is sent with every 503.
const retryAfterSeconds = "5"

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cfs.ErrFileNotFound), errors.Is(err, cfs.ErrFolderNotFound):
		return http.StatusNotFound
	case errors.Is(err, cfs.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, cfs.ErrInvalidOperation), errors.Is(err, cfs.ErrInvalidPath), errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, cfs.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, staging.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge
	case cfs.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status of err. Server-side failures are
// logged with their cause and reported to the client without it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", requestID(r.Context()), "error", err)
		writeMessage(w, status, "internal error")
	case http.StatusServiceUnavailable:
		s.logger.Warn("request timed out", "method", r.Method, "path", r.URL.Path,
			"request_id", requestID(r.Context()), "error", err)
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeMessage(w, status, "storage temporarily unavailable")
	default:
		writeMessage(w, status, err.Error())
	}
}
