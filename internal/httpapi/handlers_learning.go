package httpapi

import (
	"net/http"
	"strconv"

	"github.com/easeverse/server/internal/apperr"
	"github.com/easeverse/server/internal/grid"
	"github.com/easeverse/server/internal/learning"
)

type learningSessionRequest struct {
	UserID               string               `json:"userId"`
	SessionID            string               `json:"sessionId"`
	SongID               string               `json:"songId"`
	Genre                string               `json:"genre"`
	Title                string               `json:"title"`
	DurationSeconds      float64              `json:"durationSeconds"`
	TextAccuracy         float64              `json:"textAccuracy"`
	PronunciationClarity float64              `json:"pronunciationClarity"`
	TimingConsistency    string               `json:"timingConsistency"`
	Lyrics               string               `json:"lyrics"`
	Transcript           string               `json:"transcript"`
	Language             string               `json:"language"`
	AccentGoal           string               `json:"accentGoal"`
	TopToFix             []learning.CoachFlag `json:"topToFix"`
}

// handleLearningSession implements POST /api/v1/learning/session.
func (d *deps) handleLearningSession(w http.ResponseWriter, r *http.Request) {
	var body learningSessionRequest
	if err := decodeAndValidate(r, learningSessionSchema, &body); err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	timing, ok := learning.ParseTimingConsistency(body.TimingConsistency)
	if !ok {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "timingConsistency must be low, medium, or high"})
		return
	}

	userID := resolveUserID(r, body.UserID)
	profile, deduplicated, err := d.learning.IngestSession(r.Context(), learning.SessionInput{
		UserID:               userID,
		SessionID:            body.SessionID,
		SongID:               body.SongID,
		Genre:                body.Genre,
		Title:                body.Title,
		DurationSeconds:      body.DurationSeconds,
		TextAccuracy:         body.TextAccuracy,
		PronunciationClarity: body.PronunciationClarity,
		TimingConsistency:    timing,
		Lyrics:               body.Lyrics,
		Transcript:           body.Transcript,
		Language:             body.Language,
		AccentGoal:           body.AccentGoal,
		TopToFix:             body.TopToFix,
	})
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}

	d.writeIngestResponse(w, r, userID, profile, deduplicated)
}

type learningEasePocketRequest struct {
	UserID      string     `json:"userId"`
	EventID     string     `json:"eventId"`
	Mode        string     `json:"mode"`
	BPM         float64    `json:"bpm"`
	Grid        string     `json:"grid"`
	BeatsPerBar int        `json:"beatsPerBar"`
	Stats       grid.Stats `json:"stats"`
}

// handleLearningEasePocket implements POST /api/v1/learning/easepocket.
func (d *deps) handleLearningEasePocket(w http.ResponseWriter, r *http.Request) {
	var body learningEasePocketRequest
	if err := decodeAndValidate(r, learningEasePocketSchema, &body); err != nil {
		apperr.WriteHTTP(w, r, err)
		return
	}

	mode, ok := learning.ParseEasePocketMode(body.Mode)
	if !ok {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "mode must be subdivision, silent, consonant, pocket, or slow"})
		return
	}
	kind, ok := grid.ParseKind(body.Grid)
	if !ok {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "grid must be beat, 8th, or 16th"})
		return
	}
	beatsPerBar := body.BeatsPerBar
	if beatsPerBar == 0 {
		beatsPerBar = 4
	}

	userID := resolveUserID(r, body.UserID)
	profile, deduplicated, err := d.learning.IngestEasePocket(r.Context(), learning.EasePocketInput{
		UserID:      userID,
		EventID:     body.EventID,
		Mode:        mode,
		BPM:         body.BPM,
		Grid:        kind,
		BeatsPerBar: beatsPerBar,
		Stats:       body.Stats,
	})
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}

	d.writeIngestResponse(w, r, userID, profile, deduplicated)
}

// writeIngestResponse is the shared success shape for both ingest routes.
func (d *deps) writeIngestResponse(w http.ResponseWriter, r *http.Request, userID string, profile learning.UserProfile, deduplicated bool) {
	recommendations, _, err := d.learning.Recommend(r.Context(), userID)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"userId":          userID,
		"deduplicated":    deduplicated,
		"profile":         profile,
		"recommendations": recommendations,
	})
}

// handleLearningProfile implements GET /api/v1/learning/profile.
func (d *deps) handleLearningProfile(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r, "")
	profile, found, err := d.learning.Profile(r.Context(), userID)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	if !found {
		apperr.WriteHTTP(w, r, &apperr.NotFound{Resource: "profile"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "userId": userID, "profile": profile})
}

// handleLearningRecommendations implements GET /api/v1/learning/recommendations.
func (d *deps) handleLearningRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r, "")
	rec, found, err := d.learning.Recommend(r.Context(), userID)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	if !found {
		apperr.WriteHTTP(w, r, &apperr.NotFound{Resource: "recommendations"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "userId": userID, "recommendations": rec})
}

const (
	defaultGlobalModelLimit = 20
	maxGlobalModelLimit     = 100
)

// handleLearningGlobalModel implements GET /api/v1/learning/global-model.
func (d *deps) handleLearningGlobalModel(w http.ResponseWriter, r *http.Request) {
	limit := defaultGlobalModelLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxGlobalModelLimit {
			apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	words, tips, err := d.learning.GlobalModel(r.Context(), limit)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	if words == nil {
		words = []learning.WordDifficulty{}
	}
	if tips == nil {
		tips = []learning.TipEffectiveness{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "words": words, "tips": tips})
}

const defaultSessionsLimit = 20

// handleLearningSessions implements GET /api/v1/learning/sessions: the
// user's raw session history, most recent first.
func (d *deps) handleLearningSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	userID := resolveUserID(r, "")
	sessions, err := d.learning.Sessions(r.Context(), userID, limit)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	if sessions == nil {
		sessions = []learning.SessionEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"userId":   userID,
		"count":    len(sessions),
		"sessions": sessions,
	})
}
