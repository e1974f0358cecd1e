// Package apperr defines the error kinds the HTTP gateway maps to status
// codes and JSON bodies, per the error handling design: ValidationError,
// AuthError, RateLimitError, NotConfiguredError, WorkerTaskError, NotFound,
// and a catch-all InternalError.
package apperr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ValidationError is a 400: bad request body or parameter.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// AuthError is a 401. The message never hints at which key failed.
type AuthError struct{}

func (e *AuthError) Error() string { return "unauthorized" }

// RateLimitError is a 429.
type RateLimitError struct{ Family string }

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, try again shortly", e.Family)
}

// NotConfiguredError is a 503 naming the missing env var(s).
type NotConfiguredError struct{ EnvVars []string }

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("not configured: missing %v", e.EnvVars)
}

// WorkerTaskError comes back from the scoring worker pool. Codes
// invalid_audio/too_short/too_long surface verbatim as 400; internal
// surfaces as 503 with a generic retry message.
type WorkerTaskError struct {
	Code    string
	Message string
}

func (e *WorkerTaskError) Error() string { return e.Message }

const (
	CodeInvalidAudio = "invalid_audio"
	CodeTooShort     = "too_short"
	CodeTooLong      = "too_long"
	CodeInternal     = "internal"
)

// NotFound is a 404.
type NotFound struct{ Resource string }

func (e *NotFound) Error() string { return e.Resource + " not found" }

// InternalError is a 500; the detail is logged but not exposed.
type InternalError struct{ Cause error }

func (e *InternalError) Error() string { return e.Cause.Error() }
func (e *InternalError) Unwrap() error { return e.Cause }

// WriteHTTP maps err to the correct status code and JSON body and writes it.
// Unrecognized errors are treated as InternalError.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "route", r.URL.Path, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func classify(err error) (int, map[string]string) {
	switch e := err.(type) {
	case *ValidationError:
		return http.StatusBadRequest, map[string]string{"error": e.Reason}
	case *AuthError:
		return http.StatusUnauthorized, map[string]string{"error": "Unauthorized"}
	case *RateLimitError:
		return http.StatusTooManyRequests, map[string]string{"error": e.Error()}
	case *NotConfiguredError:
		return http.StatusServiceUnavailable, map[string]string{"error": e.Error()}
	case *WorkerTaskError:
		return classifyWorkerTask(e)
	case *NotFound:
		return http.StatusNotFound, map[string]string{"error": e.Error()}
	case *InternalError:
		return http.StatusInternalServerError, map[string]string{"error": "internal error"}
	default:
		return http.StatusInternalServerError, map[string]string{"error": "internal error"}
	}
}

func classifyWorkerTask(e *WorkerTaskError) (int, map[string]string) {
	switch e.Code {
	case CodeInvalidAudio, CodeTooShort, CodeTooLong:
		return http.StatusBadRequest, map[string]string{"error": e.Code}
	default:
		return http.StatusServiceUnavailable, map[string]string{"error": "please retry"}
	}
}
