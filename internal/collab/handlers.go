package collab

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/easeverse/server/internal/apperr"
)

// WebSocketConfig controls the /ws upgrade's auth and origin gating.
type WebSocketConfig struct {
	APIKey          string
	OriginAllowList []string
	AllowAllOrigins bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // checked explicitly in HandleWebSocket
}

func presentedKey(r *http.Request) string {
	if k := r.Header.Get("x-api-key"); k != "" {
		return k
	}
	if k := r.URL.Query().Get("apiKey"); k != "" {
		return k
	}
	return r.URL.Query().Get("token")
}

// HandleWebSocket implements GET /api/v1/ws: API-key and Origin gated,
// subscribing the connection to lyric updates matching its query filters.
func (e *Engine) HandleWebSocket(cfg WebSocketConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.APIKey != "" {
			presented := presentedKey(r)
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.APIKey)) != 1 {
				apperr.WriteHTTP(w, r, &apperr.AuthError{})
				return
			}
		}

		origin := r.Header.Get("Origin")
		if !OriginAllowed(origin, cfg.OriginAllowList, cfg.AllowAllOrigins) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		e.Hub.Serve(conn, ParseFilter(r.URL.Query()))
	}
}

type upsertBody struct {
	ExternalTrackID string   `json:"externalTrackId"`
	ProjectID       string   `json:"projectId"`
	Title           string   `json:"title"`
	Artist          string   `json:"artist"`
	BPM             float64  `json:"bpm"`
	Lyrics          string   `json:"lyrics"`
	Collaborators   []string `json:"collaborators"`
	Source          string   `json:"source"`
	UpdatedAt       string   `json:"updatedAt"`
}

// HandleUpsert implements POST /collab/lyrics.
func (e *Engine) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var body upsertBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "invalid JSON body"})
		return
	}
	if body.ExternalTrackID == "" {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "externalTrackId is required"})
		return
	}
	if body.Title == "" {
		apperr.WriteHTTP(w, r, &apperr.ValidationError{Reason: "title is required"})
		return
	}

	req := UpsertRequest{
		ExternalTrackID: body.ExternalTrackID,
		ProjectID:       body.ProjectID,
		Title:           body.Title,
		Artist:          body.Artist,
		BPM:             body.BPM,
		Lyrics:          body.Lyrics,
		Collaborators:   body.Collaborators,
		Source:          body.Source,
	}
	if body.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, body.UpdatedAt); err == nil {
			req.UpdatedAt = ts
		}
	}

	draft, err := e.Upsert(r.Context(), req)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"storage": e.StorageName(),
		"item":    draft,
	})
}

// HandleGet implements GET /collab/lyrics/{id}.
func (e *Engine) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	draft, ok, err := e.Get(r.Context(), id)
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	if !ok {
		apperr.WriteHTTP(w, r, &apperr.NotFound{Resource: "lyric draft"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"storage": e.StorageName(),
		"item":    draft,
	})
}

// HandleList implements GET /collab/lyrics?projectId=&source=.
func (e *Engine) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := e.List(r.Context(), r.URL.Query().Get("projectId"), r.URL.Query().Get("source"))
	if err != nil {
		apperr.WriteHTTP(w, r, &apperr.InternalError{Cause: err})
		return
	}
	if list == nil {
		list = []LyricDraft{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"storage": e.StorageName(),
		"count":   len(list),
		"items":   list,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
