// Package config resolves the gateway's startup configuration from the
// environment once, at process start.
package config

import (
	"strings"

	"github.com/easeverse/server/internal/env"
	"github.com/easeverse/server/internal/httpapi"
)

// Config is the fully resolved process configuration.
type Config struct {
	ListenAddr string

	// DatabaseURL enables the Postgres stores when set; otherwise both
	// the learning engine and collab hub run on in-memory storage.
	DatabaseURL string

	HTTP httpapi.Config

	// Speech provider credentials. They are loaded but no provider is built
	// from them: the speech routes answer 503 naming these variables
	// whether or not they are set.
	STTAPIKey string
	TTSAPIKey string
	TTSVoice  string
}

// Load reads every environment variable the gateway needs.
func Load(version string) Config {
	return Config{
		ListenAddr:  ":" + env.Str("PORT", "8080"),
		DatabaseURL: env.Str("DATABASE_URL", ""),
		STTAPIKey:   env.Str("STT_API_KEY", ""),
		TTSAPIKey:   env.Str("TTS_API_KEY", ""),
		TTSVoice:    env.Str("TTS_VOICE", ""),
		HTTP: httpapi.Config{
			ExternalAPIKey:       env.Str("EXTERNAL_API_KEY", ""),
			PronounceAPIKey:      env.Str("PRONOUNCE_API_KEY", ""),
			SessionScoringAPIKey: env.Str("SESSION_SCORING_API_KEY", ""),
			CORSAllowAll:         env.Bool("CORS_ALLOW_ALL", false),
			CORSAllowOrigins:     splitList(env.Str("CORS_ALLOW_ORIGINS", "")),
			DisableWorker:        env.Bool("EASEPOCKET_DISABLE_WORKER", false),
			Version:              version,
		},
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
