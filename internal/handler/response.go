package handler

// RESPONSE HELPERS:
// Every error response from the API has the same shape:
//
//	{"error": "human readable message", "details": ["optional", "per-field"]}
//
// plus, for a few errors, extra top-level fields (currentRequestId and
// currentMentorId on the pending-request conflict).

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/mentor-match/internal/apperror"
)

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorWriter maps domain errors to HTTP responses. In development mode the
// cause of a 500 is echoed in "details"; in production it only goes to the log.
type errorWriter struct {
	logger      *slog.Logger
	development bool
}

func newErrorWriter(logger *slog.Logger, development bool) errorWriter {
	return errorWriter{logger: logger, development: development}
}

// statusFor maps an apperror sentinel to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "request body too large"})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := statusFor(appErr)
		if status != http.StatusInternalServerError {
			writeJSON(w, status, appErr.Body())
			return
		}
	}

	// Unknown error: never expose internals outside development.
	e.logger.Error("request failed",
		slog.String("request_id", chimiddleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	body := map[string]any{"error": "internal server error"}
	if e.development {
		body["details"] = []string{err.Error()}
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

// NotFound is the router's JSON 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
}

// MethodNotAllowed is the router's JSON 405.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
