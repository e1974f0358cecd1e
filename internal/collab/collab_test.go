package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestUpsertIdempotence(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	req := UpsertRequest{
		ExternalTrackID: "trk-1",
		ProjectID:       "p1",
		Title:           "Night Drive",
		Lyrics:          "city lights are calling",
		Source:          "studio-app",
		Collaborators:   []string{"ana", "ben"},
	}

	first, err := e.Upsert(ctx, req)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := e.Upsert(ctx, req)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ExternalTrackID != first.ExternalTrackID ||
		second.Title != first.Title ||
		second.Lyrics != first.Lyrics ||
		second.ProjectID != first.ProjectID ||
		second.Source != first.Source {
		t.Fatalf("second upsert diverged: %+v vs %+v", second, first)
	}

	got, ok, err := e.Get(ctx, "trk-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Title != "Night Drive" {
		t.Fatalf("stored title %q", got.Title)
	}
}

func TestUpsertPreservesUnsetFields(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	_, err := e.Upsert(ctx, UpsertRequest{
		ExternalTrackID: "trk-2",
		Title:           "First",
		Lyrics:          "v1",
		BPM:             92,
		Source:          "studio-app",
		Collaborators:   []string{"ana"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// second write omits bpm, source, collaborators
	updated, err := e.Upsert(ctx, UpsertRequest{
		ExternalTrackID: "trk-2",
		Title:           "First (edit)",
		Lyrics:          "v2",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if updated.BPM != 92 || updated.Source != "studio-app" || len(updated.Collaborators) != 1 {
		t.Fatalf("unset fields not preserved: %+v", updated)
	}
	if updated.Lyrics != "v2" || updated.Title != "First (edit)" {
		t.Fatalf("supplied fields not replaced: %+v", updated)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	for _, r := range []UpsertRequest{
		{ExternalTrackID: "a", Title: "A", ProjectID: "p1", Source: "s1"},
		{ExternalTrackID: "b", Title: "B", ProjectID: "p1", Source: "s2"},
		{ExternalTrackID: "c", Title: "C", ProjectID: "p2", Source: "s1"},
	} {
		if _, err := e.Upsert(ctx, r); err != nil {
			t.Fatalf("upsert %s: %v", r.ExternalTrackID, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	p1, err := e.List(ctx, "p1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(p1) != 2 {
		t.Fatalf("p1 list = %d drafts, want 2", len(p1))
	}
	if !p1[0].UpdatedAt.After(p1[1].UpdatedAt) {
		t.Fatal("list not sorted by updatedAt desc")
	}

	s1p1, err := e.List(ctx, "p1", "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(s1p1) != 1 || s1p1[0].ExternalTrackID != "a" {
		t.Fatalf("combined filter = %+v, want only a", s1p1)
	}
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin   string
		allow    []string
		allowAll bool
		want     bool
	}{
		{"", nil, false, true},
		{"http://localhost:3000", nil, false, true},
		{"http://127.0.0.1:8081", nil, false, true},
		{"https://evil.example", nil, false, false},
		{"https://app.example", []string{"https://app.example"}, false, true},
		{"https://evil.example", nil, true, true},
	}
	for _, c := range cases {
		if got := OriginAllowed(c.origin, c.allow, c.allowAll); got != c.want {
			t.Fatalf("OriginAllowed(%q, %v, %v) = %v, want %v", c.origin, c.allow, c.allowAll, got, c.want)
		}
	}
}

type wsFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Filters Filter `json:"filters"`
	SentAt  string `json:"sentAt"`
	Item    struct {
		ExternalTrackID string `json:"externalTrackId"`
		Title           string `json:"title"`
		ProjectID       string `json:"projectId"`
	} `json:"item"`
}

func dialWS(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f wsFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal frame %s: %v", raw, err)
	}
	return f
}

// TestRealtimeFanOutWithFilters is scenario 6: two subscribers with
// different projectId filters both receive ready frames, but only the
// matching one receives the update.
func TestRealtimeFanOutWithFilters(t *testing.T) {
	e := NewEngine(nil)
	defer e.Hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", e.HandleWebSocket(WebSocketConfig{}))
	server := httptest.NewServer(mux)
	defer server.Close()

	connP1 := dialWS(t, server, "?projectId=p1")
	defer connP1.Close()
	connP2 := dialWS(t, server, "?projectId=p2")
	defer connP2.Close()

	readyP1 := readFrame(t, connP1)
	if readyP1.Type != "ready" || readyP1.Channel != "collab_lyrics" || readyP1.Filters.ProjectID != "p1" {
		t.Fatalf("p1 ready frame = %+v", readyP1)
	}
	readyP2 := readFrame(t, connP2)
	if readyP2.Type != "ready" || readyP2.Filters.ProjectID != "p2" {
		t.Fatalf("p2 ready frame = %+v", readyP2)
	}

	if _, err := e.Upsert(context.Background(), UpsertRequest{
		ExternalTrackID: "trk-9", Title: "Fanout", ProjectID: "p1",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	update := readFrame(t, connP1)
	if update.Type != "collab_lyrics_updated" || update.Item.ExternalTrackID != "trk-9" || update.SentAt == "" {
		t.Fatalf("p1 update frame = %+v", update)
	}

	connP2.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := connP2.ReadMessage(); err == nil {
		t.Fatal("p2 should not receive an update for p1")
	}
}

func TestWebSocketRejectsBadKey(t *testing.T) {
	e := NewEngine(nil)
	defer e.Hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", e.HandleWebSocket(WebSocketConfig{APIKey: "secret"}))
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without key should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got response %+v, want 401", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=secret", nil)
	if err != nil {
		t.Fatalf("dial with token query should succeed: %v", err)
	}
	conn.Close()
}
