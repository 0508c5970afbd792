package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"inferd/internal/runtime"
	"inferd/internal/session"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps session errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case session.IsInvalidArgument(err):
		return http.StatusBadRequest
	case session.IsSessionNotFound(err):
		return http.StatusNotFound
	case session.IsNotLoaded(err):
		return http.StatusConflict
	case session.IsBusy(err), session.IsCapacity(err):
		return http.StatusTooManyRequests
	case errors.Is(err, runtime.ErrNotBuilt):
		return http.StatusServiceUnavailable
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

// writeSessionError applies the standard mapping and records backpressure.
func writeSessionError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("session_busy")
	}
	writeJSONError(w, status, err.Error())
}
