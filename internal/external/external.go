// Package external defines the narrow interfaces the gateway uses to reach
// speech-to-text and text-to-speech providers. No concrete provider is
// included: the gateway wires the NotConfigured implementations, which
// report a clean 503 instead of a nil-pointer panic deep in a handler.
package external

import (
	"context"

	"github.com/easeverse/server/internal/apperr"
)

// Transcriber turns recorded audio into text, used by the session-score
// route to compare spoken words against a reference lyric. language is an
// opaque hint forwarded to the provider.
type Transcriber interface {
	Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error)
}

// Speaker synthesizes speech audio (MPEG) from text, used by the TTS and
// pronounce routes. voice is an opaque provider voice id.
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// NotConfiguredTranscriber always fails with NotConfiguredError, naming
// the environment variables a real provider would need.
type NotConfiguredTranscriber struct{ EnvVars []string }

func (n NotConfiguredTranscriber) Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error) {
	return "", &apperr.NotConfiguredError{EnvVars: n.EnvVars}
}

// NotConfiguredSpeaker always fails with NotConfiguredError.
type NotConfiguredSpeaker struct{ EnvVars []string }

func (n NotConfiguredSpeaker) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return nil, &apperr.NotConfiguredError{EnvVars: n.EnvVars}
}
