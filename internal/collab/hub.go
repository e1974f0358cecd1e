package collab

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/easeverse/server/internal/metrics"
)

const (
	heartbeatInterval = 30 * time.Second
	writeWait         = 5 * time.Second
	sendBuffer        = 16

	channelName = "collab_lyrics"
)

// Filter narrows which lyric updates a subscriber receives. Empty fields
// match everything.
type Filter struct {
	Source          string `json:"source,omitempty"`
	ProjectID       string `json:"projectId,omitempty"`
	ExternalTrackID string `json:"externalTrackId,omitempty"`
}

func (f Filter) matches(d LyricDraft) bool {
	if f.Source != "" && d.Source != f.Source {
		return false
	}
	if f.ProjectID != "" && d.ProjectID != f.ProjectID {
		return false
	}
	if f.ExternalTrackID != "" && d.ExternalTrackID != f.ExternalTrackID {
		return false
	}
	return true
}

// ParseFilter builds a Filter from the upgrade request's query parameters.
func ParseFilter(q url.Values) Filter {
	return Filter{
		Source:          q.Get("source"),
		ProjectID:       q.Get("projectId"),
		ExternalTrackID: q.Get("externalTrackId"),
	}
}

// updateItem is the canonical published payload for one draft update.
type updateItem struct {
	ExternalTrackID string    `json:"externalTrackId"`
	Title           string    `json:"title"`
	ProjectID       string    `json:"projectId,omitempty"`
	Source          string    `json:"source,omitempty"`
	Artist          string    `json:"artist,omitempty"`
	BPM             float64   `json:"bpm,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Collaborators   []string  `json:"collaborators"`
}

type subscriber struct {
	id     string
	conn   *websocket.Conn
	filter Filter
	send   chan []byte

	mu    sync.Mutex
	alive bool
}

func (s *subscriber) markAlive() {
	s.mu.Lock()
	s.alive = true
	s.mu.Unlock()
}

// checkAndReset reports whether the peer responded since the previous
// heartbeat tick, clearing the flag for the next interval.
func (s *subscriber) checkAndReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alive := s.alive
	s.alive = false
	return alive
}

// Hub fans out lyric draft updates to subscribed WebSocket connections: a
// mutex-guarded subscribe/unsubscribe/broadcast map with non-blocking
// sends to slow readers, plus a heartbeat that terminates peers that
// missed a ping interval.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closing     chan struct{}
	closeOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		closing:     make(chan struct{}),
	}
}

// Serve registers an upgraded connection with its subscription filter,
// sends the ready frame, and runs the read/write loops until the
// connection closes or the hub shuts down.
func (h *Hub) Serve(conn *websocket.Conn, filter Filter) {
	sub := &subscriber{
		id:     uuid.NewString(),
		conn:   conn,
		filter: filter,
		send:   make(chan []byte, sendBuffer),
		alive:  true,
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	metrics.CollabConnections.Inc()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub.id)
		h.mu.Unlock()
		metrics.CollabConnections.Dec()
		conn.Close()
	}()

	ready, _ := json.Marshal(map[string]any{
		"type":       "ready",
		"channel":    channelName,
		"filters":    filter,
		"serverTime": time.Now().UTC().Format(time.RFC3339),
	})
	sub.send <- ready

	conn.SetPongHandler(func(string) error {
		sub.markAlive()
		return nil
	})

	done := make(chan struct{})
	go h.writeLoop(sub, done)
	h.readLoop(sub, done)
}

func (h *Hub) writeLoop(sub *subscriber, done chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.closing:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			sub.conn.Close()
			return
		case <-done:
			return
		case msg := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				sub.conn.Close()
				return
			}
		case <-ticker.C:
			if !sub.checkAndReset() {
				sub.conn.Close()
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.conn.Close()
				return
			}
		}
	}
}

// readLoop drains incoming frames so pongs and close frames are
// processed; clients aren't expected to send application messages.
func (h *Hub) readLoop(sub *subscriber, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
		sub.markAlive()
	}
}

// Publish broadcasts a draft update to every subscriber whose filter
// matches, dropping the message for subscribers whose send buffer is full
// rather than blocking the publisher.
func (h *Hub) Publish(d LyricDraft) {
	payload, err := json.Marshal(map[string]any{
		"type":   "collab_lyrics_updated",
		"sentAt": time.Now().UTC().Format(time.RFC3339),
		"item": updateItem{
			ExternalTrackID: d.ExternalTrackID,
			Title:           d.Title,
			ProjectID:       d.ProjectID,
			Source:          d.Source,
			Artist:          d.Artist,
			BPM:             d.BPM,
			UpdatedAt:       d.UpdatedAt,
			Collaborators:   d.Collaborators,
		},
	})
	if err != nil {
		slog.Error("marshal collab broadcast", "error", err)
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.filter.matches(d) {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			slog.Warn("dropping collab update for slow subscriber", "subscriber", sub.id)
		}
	}
	metrics.CollabPublishes.Inc()
}

// Shutdown closes every open connection and stops the hub.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		sub.conn.Close()
	}
}

// OriginAllowed checks an Origin header against an allow-list, loopback
// origins, or a global allow-all flag. An absent Origin (non-browser
// clients) is allowed.
func OriginAllowed(origin string, allowList []string, allowAll bool) bool {
	if allowAll {
		return true
	}
	if origin == "" {
		return true
	}
	for _, allowed := range allowList {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1")
}
