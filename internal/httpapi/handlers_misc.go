package httpapi

import (
	"net/http"
	"time"
)

// handleCatalog implements GET /api/v1: a small self-describing index of
// the API surface.
func (d *deps) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "easeverse-gateway",
		"version": d.cfg.Version,
		"endpoints": []map[string]string{
			{"method": "GET", "path": "/api/v1/health", "summary": "Liveness check"},
			{"method": "GET", "path": "/api/v1/openapi.json", "summary": "OpenAPI document"},
			{"method": "POST", "path": "/api/v1/tts", "summary": "Synthesize speech from text"},
			{"method": "POST", "path": "/api/v1/pronounce", "summary": "Pronunciation guide for one word"},
			{"method": "POST", "path": "/api/v1/session-score", "summary": "Score a practice session against its lyrics"},
			{"method": "POST", "path": "/api/v1/easepocket/consonant-score", "summary": "Consonant timing score against a BPM grid"},
			{"method": "GET", "path": "/api/v1/collab/lyrics", "summary": "List lyric drafts"},
			{"method": "POST", "path": "/api/v1/collab/lyrics", "summary": "Upsert a lyric draft"},
			{"method": "GET", "path": "/api/v1/collab/lyrics/{externalTrackId}", "summary": "Fetch a lyric draft"},
			{"method": "POST", "path": "/api/v1/learning/session", "summary": "Ingest a scored session"},
			{"method": "POST", "path": "/api/v1/learning/easepocket", "summary": "Ingest a rhythm drill result"},
			{"method": "GET", "path": "/api/v1/learning/sessions", "summary": "Recent session history"},
			{"method": "GET", "path": "/api/v1/learning/profile", "summary": "Per-user learning profile"},
			{"method": "GET", "path": "/api/v1/learning/recommendations", "summary": "Practice recommendations"},
			{"method": "GET", "path": "/api/v1/learning/global-model", "summary": "Global word difficulty and tip effectiveness"},
			{"method": "GET", "path": "/api/v1/ws", "summary": "Realtime collaborative lyric updates"},
		},
	})
}

// handleHealth implements GET /api/v1/health.
func (d *deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"version":   d.cfg.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

const openAPIDocument = `{
	"openapi": "3.1.0",
	"info": {"title": "EaseVerse Gateway", "version": "1.0.0"},
	"paths": {
		"/api/v1/health": {"get": {"summary": "Liveness check"}},
		"/api/v1/tts": {"post": {"summary": "Synthesize speech from text"}},
		"/api/v1/pronounce": {"post": {"summary": "Pronunciation guide for one word"}},
		"/api/v1/session-score": {"post": {"summary": "Score a practice session against its lyrics"}},
		"/api/v1/easepocket/consonant-score": {"post": {"summary": "Consonant timing score against a BPM grid"}},
		"/api/v1/collab/lyrics": {
			"post": {"summary": "Upsert a collaborative lyric draft"},
			"get": {"summary": "List lyric drafts by project/source"}
		},
		"/api/v1/collab/lyrics/{externalTrackId}": {"get": {"summary": "Fetch a lyric draft"}},
		"/api/v1/learning/session": {"post": {"summary": "Ingest a scored session into the learning engine"}},
		"/api/v1/learning/easepocket": {"post": {"summary": "Ingest a rhythm drill result"}},
		"/api/v1/learning/sessions": {"get": {"summary": "Recent session history"}},
		"/api/v1/learning/profile": {"get": {"summary": "Fetch a user's learning profile"}},
		"/api/v1/learning/recommendations": {"get": {"summary": "Fetch practice recommendations for a user"}},
		"/api/v1/learning/global-model": {"get": {"summary": "Global word difficulty and tip effectiveness"}},
		"/api/v1/ws": {"get": {"summary": "Realtime collaborative lyric updates"}}
	}
}`

// handleOpenAPI implements GET /api/v1/openapi.json.
func handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(openAPIDocument))
}
