package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easeverse/server/internal/collab"
	"github.com/easeverse/server/internal/external"
	"github.com/easeverse/server/internal/learning"
	"github.com/easeverse/server/internal/scoring"
	"github.com/easeverse/server/internal/wav"
)

func newTestServer(cfg Config) http.Handler {
	return NewServer(cfg, scoring.NewPool(), learning.NewEngine(nil), collab.NewEngine(nil),
		external.NotConfiguredTranscriber{EnvVars: []string{"STT_API_KEY"}},
		external.NotConfiguredSpeaker{EnvVars: []string{"TTS_API_KEY"}})
}

func TestRequireAPIKeyRejectsMissingKey(t *testing.T) {
	called := false
	h := requireAPIKey("secret", func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if called {
		t.Fatal("handler should not run without a key")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestRequireAPIKeyAcceptsAllSources(t *testing.T) {
	for _, present := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("x-api-key", "secret") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret") },
		func(r *http.Request) { r.URL.RawQuery = "apiKey=secret" },
		func(r *http.Request) { r.URL.RawQuery = "token=secret" },
	} {
		called := false
		h := requireAPIKey("secret", func(w http.ResponseWriter, r *http.Request) { called = true })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		present(req)
		rec := httptest.NewRecorder()
		h(rec, req)
		if !called {
			t.Fatalf("handler should run with key presented via %v", req.URL)
		}
	}
}

func TestRequireAPIKeyPassesThroughWhenUnset(t *testing.T) {
	called := false
	h := requireAPIKey("", func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if !called {
		t.Fatal("handler should run when no key is configured")
	}
}

// TestSessionScoreRateLimit is scenario 5: the 13th rapid session-score
// request from one IP hits the 12/min budget.
func TestSessionScoreRateLimit(t *testing.T) {
	handler := newTestServer(Config{DisableWorker: true})
	body := []byte(`{"lyrics":"la la","audioBase64":"AAAA"}`)

	var last int
	for i := range 13 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session-score", bytes.NewReader(body))
		req.RemoteAddr = "9.9.9.9:1234"
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
		if i < 12 && rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate-limited too early", i+1)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("13th request status %d, want 429", last)
	}
}

func TestRateLimiterTracksIPsIndependently(t *testing.T) {
	rl := NewRateLimiter()
	limit := familyLimits[FamilyPronounce]

	for i := range limit {
		if !rl.Allow("1.1.1.1", FamilyPronounce) {
			t.Fatalf("ip1 request %d should be allowed", i)
		}
	}
	if rl.Allow("1.1.1.1", FamilyPronounce) {
		t.Fatal("over-budget request should be rejected")
	}
	if !rl.Allow("2.2.2.2", FamilyPronounce) {
		t.Fatal("a different IP should have its own budget")
	}
}

func TestHealthShape(t *testing.T) {
	handler := newTestServer(Config{Version: "1.0.0", ExternalAPIKey: "gate"})

	// health stays open even with the external key set
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
	var body struct {
		OK        bool   `json:"ok"`
		Version   string `json:"version"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.OK || body.Version != "1.0.0" || body.Timestamp == "" {
		t.Fatalf("health body = %+v", body)
	}

	// the catalog is gated
	req = httptest.NewRequest(http.MethodGet, "/api/v1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("catalog without key status %d, want 401", rec.Code)
	}
}

func TestTTSNotConfiguredReturns503(t *testing.T) {
	handler := newTestServer(Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tts", bytes.NewReader([]byte(`{"text":"hello"}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("TTS_API_KEY")) {
		t.Fatalf("503 body should name the missing env var: %s", rec.Body.String())
	}
}

func TestConsonantScoreEndToEnd(t *testing.T) {
	handler := newTestServer(Config{DisableWorker: true})

	stepMs := 60000.0 / 120 / 4
	sampleRate := 16000
	n := int(2.2 * float64(sampleRate))
	samples := make([]float32, n)
	burstSamples := sampleRate / 100
	for b := range 10 {
		start := int((500 + float64(b)*stepMs) / 1000 * float64(sampleRate))
		for i := 0; i < burstSamples && start+i < n; i++ {
			ts := float64(i) / float64(sampleRate)
			samples[start+i] = float32(math.Cos(2 * math.Pi * 4000 * ts))
		}
	}
	audio := base64.StdEncoding.EncodeToString(wav.Encode(samples, sampleRate))

	body := fmt.Sprintf(`{"audioBase64":%q,"bpm":120,"grid":"16th","toleranceMs":15}`, audio)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/easepocket/consonant-score", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK              bool    `json:"ok"`
		DurationSeconds float64 `json:"durationSeconds"`
		StepMs          float64 `json:"stepMs"`
		Stats           struct {
			EventCount int     `json:"eventCount"`
			OnTimePct  float64 `json:"onTimePct"`
			MeanAbsMs  float64 `json:"meanAbsMs"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK || resp.StepMs != stepMs {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Stats.EventCount < 6 || resp.Stats.MeanAbsMs >= 15 || resp.Stats.OnTimePct <= 60 {
		t.Fatalf("stats = %+v, want >=6 events, meanAbs<15, onTime>60", resp.Stats)
	}
}

func TestConsonantScoreRejectsBadBPM(t *testing.T) {
	handler := newTestServer(Config{DisableWorker: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/easepocket/consonant-score",
		bytes.NewReader([]byte(`{"audioBase64":"AAAA","bpm":20}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestLearningSessionIngestAndProfile(t *testing.T) {
	handler := newTestServer(Config{DisableWorker: true})

	body := `{"sessionId":"s1","lyrics":"golden morning light","transcript":"morning light",
		"timingConsistency":"medium","topToFix":[{"word":"golden","reason":"plosive attack"}]}`

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/learning/session", bytes.NewReader([]byte(body)))
		req.Header.Set("x-user-id", "tester")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := post()
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK           bool   `json:"ok"`
		UserID       string `json:"userId"`
		Deduplicated bool   `json:"deduplicated"`
		Profile      struct {
			SessionCount int `json:"sessionCount"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK || resp.UserID != "tester" || resp.Deduplicated || resp.Profile.SessionCount != 1 {
		t.Fatalf("first ingest resp = %+v", resp)
	}

	rec = post()
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Deduplicated {
		t.Fatal("second identical ingest should be deduplicated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/learning/profile", nil)
	req.Header.Set("x-user-id", "tester")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("profile status %d", rec2.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/learning/profile", nil)
	req.Header.Set("x-user-id", "stranger")
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, req)
	if rec3.Code != http.StatusNotFound {
		t.Fatalf("unknown user profile status %d, want 404", rec3.Code)
	}
}

func TestGlobalModelLimitValidation(t *testing.T) {
	handler := newTestServer(Config{DisableWorker: true})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/learning/global-model?limit=500", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/learning/global-model?limit=10", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
}

func TestResolveUserIDPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?userId=query-user", nil)
	req.Header.Set("x-easeverse-user-id", "header-user")

	if got := resolveUserID(req, "body-user"); got != "body-user" {
		t.Fatalf("got %q, want body-user to win", got)
	}
	if got := resolveUserID(req, ""); got != "header-user" {
		t.Fatalf("got %q, want header-user to win over query", got)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/x?userId=query-user", nil)
	if got := resolveUserID(req2, ""); got != "query-user" {
		t.Fatalf("got %q, want query-user", got)
	}

	req3 := httptest.NewRequest(http.MethodGet, "/x", nil)
	req3.RemoteAddr = "9.9.9.9:1234"
	if got := resolveUserID(req3, ""); got != "anon:9.9.9.9" {
		t.Fatalf("got %q, want anon:9.9.9.9", got)
	}
}

func TestSyllableHelpers(t *testing.T) {
	if got := phoneticRespelling("remember"); got != "RE-mem-ber" {
		t.Fatalf("phoneticRespelling = %q", got)
	}
	if got := slowForm("remember"); got != "re... mem... ber" {
		t.Fatalf("slowForm = %q", got)
	}
	if got := phoneticRespelling("cat"); got != "CAT" {
		t.Fatalf("one-syllable respelling = %q", got)
	}
}
