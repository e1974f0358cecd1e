package httpapi

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/easeverse/server/internal/apperr"
	"github.com/easeverse/server/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestMetrics records request latency and status on every route,
// including ones that never reach a handler (404s from the mux itself).
func withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		slog.Info("request", "method", r.Method, "route", r.URL.Path, "status", rec.status, "duration_ms", elapsed.Milliseconds())
	})
}

// withCORS applies the origin policy to browser requests: allowed origins
// (or any, with the allow-all flag) are echoed back, and preflights are
// answered without reaching a handler.
func withCORS(cfg Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin, cfg) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, x-easeverse-user-id, x-user-id")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, cfg Config) bool {
	if cfg.CORSAllowAll {
		return true
	}
	for _, allowed := range cfg.CORSAllowOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1")
}

// validateSchema wraps next, rejecting requests whose body fails schema
// before forwarding to a handler that decodes the body itself (used for
// routes owned by another package, which don't import gojsonschema).
func validateSchema(schema *gojsonschema.Schema, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "could not read request body"})
			return
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil || !result.Valid() {
			apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "request body failed validation"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		next(w, r)
	}
}

// rateLimited wraps next, rejecting requests over family's budget for the
// caller's IP.
func rateLimited(limiter *RateLimiter, family Family, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r), family) {
			apperr.WriteHTTP(w, r, &apperr.RateLimitError{Family: string(family)})
			return
		}
		next(w, r)
	}
}
