// Package httpapi is the HTTP gateway: route registration, request
// validation, auth, rate limiting, and the handlers that glue the
// scoring, learning, and collab components to the wire.
package httpapi

import (
	"net/http"

	"github.com/easeverse/server/internal/collab"
	"github.com/easeverse/server/internal/external"
	"github.com/easeverse/server/internal/learning"
	"github.com/easeverse/server/internal/scoring"
)

// Config carries the per-route API keys and feature toggles resolved from
// the environment at startup.
type Config struct {
	// ExternalAPIKey gates every /api/v1 route (except health and the
	// OpenAPI document) when set.
	ExternalAPIKey string
	// PronounceAPIKey and SessionScoringAPIKey override ExternalAPIKey
	// for their routes when set.
	PronounceAPIKey      string
	SessionScoringAPIKey string

	CORSAllowAll     bool
	CORSAllowOrigins []string

	DisableWorker bool

	Version string
}

// routeKey resolves the secret for a route with its own optional key.
func routeKey(perRoute, external string) string {
	if perRoute != "" {
		return perRoute
	}
	return external
}

// deps is the single struct every handler method hangs off, the same shape
// the ambient gateway's own route wiring uses to avoid a web of individual
// constructor parameters.
type deps struct {
	cfg         Config
	pool        *scoring.Pool
	learning    *learning.Engine
	collab      *collab.Engine
	transcriber external.Transcriber
	speaker     external.Speaker
	limiter     *RateLimiter
}

// NewServer builds the top-level HTTP handler (including the /metrics
// endpoint) with all dependencies wired.
func NewServer(cfg Config, pool *scoring.Pool, learningEngine *learning.Engine, collabEngine *collab.Engine, transcriber external.Transcriber, speaker external.Speaker) http.Handler {
	d := &deps{
		cfg:         cfg,
		pool:        pool,
		learning:    learningEngine,
		collab:      collabEngine,
		transcriber: transcriber,
		speaker:     speaker,
		limiter:     NewRateLimiter(),
	}
	mux := http.NewServeMux()
	registerRoutes(mux, d)
	return withRequestMetrics(withCORS(cfg, mux))
}
