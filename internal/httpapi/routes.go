package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/easeverse/server/internal/collab"
)

// registerRoutes wires the full route table, gating each /api/v1 route
// with the external API key (health and the OpenAPI document stay open)
// and attaching each POST family's rate limiter.
func registerRoutes(mux *http.ServeMux, d *deps) {
	gate := func(next http.HandlerFunc) http.HandlerFunc {
		return requireAPIKey(d.cfg.ExternalAPIKey, next)
	}

	mux.HandleFunc("GET /api/v1", gate(d.handleCatalog))
	mux.HandleFunc("GET /api/v1/{$}", gate(d.handleCatalog))
	mux.HandleFunc("GET /api/v1/health", d.handleHealth)
	mux.HandleFunc("GET /api/v1/openapi.json", handleOpenAPI)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/tts", gate(d.handleTTS))

	mux.HandleFunc("POST /api/v1/pronounce",
		requireAPIKey(routeKey(d.cfg.PronounceAPIKey, d.cfg.ExternalAPIKey),
			rateLimited(d.limiter, FamilyPronounce, d.handlePronounce)))

	mux.HandleFunc("POST /api/v1/session-score",
		requireAPIKey(routeKey(d.cfg.SessionScoringAPIKey, d.cfg.ExternalAPIKey),
			rateLimited(d.limiter, FamilySessionScore, d.handleSessionScore)))

	mux.HandleFunc("POST /api/v1/easepocket/consonant-score",
		gate(rateLimited(d.limiter, FamilyEasePocket, d.handleConsonantScore)))

	mux.HandleFunc("POST /api/v1/learning/session",
		gate(rateLimited(d.limiter, FamilyLearning, d.handleLearningSession)))
	mux.HandleFunc("POST /api/v1/learning/easepocket",
		gate(rateLimited(d.limiter, FamilyLearning, d.handleLearningEasePocket)))
	mux.HandleFunc("GET /api/v1/learning/profile", gate(d.handleLearningProfile))
	mux.HandleFunc("GET /api/v1/learning/recommendations", gate(d.handleLearningRecommendations))
	mux.HandleFunc("GET /api/v1/learning/global-model", gate(d.handleLearningGlobalModel))
	mux.HandleFunc("GET /api/v1/learning/sessions", gate(d.handleLearningSessions))

	mux.HandleFunc("POST /api/v1/collab/lyrics",
		gate(validateSchema(collabUpsertSchema, d.collab.HandleUpsert)))
	mux.HandleFunc("GET /api/v1/collab/lyrics", gate(d.collab.HandleList))
	mux.HandleFunc("GET /api/v1/collab/lyrics/{id}", gate(d.collab.HandleGet))

	mux.HandleFunc("GET /api/v1/ws", d.collab.HandleWebSocket(collab.WebSocketConfig{
		APIKey:          d.cfg.ExternalAPIKey,
		OriginAllowList: d.cfg.CORSAllowOrigins,
		AllowAllOrigins: d.cfg.CORSAllowAll,
	}))
}
