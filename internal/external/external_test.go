package external

import (
	"context"
	"testing"

	"github.com/easeverse/server/internal/apperr"
)

func TestNotConfiguredTranscriberReturnsConfigError(t *testing.T) {
	var tx Transcriber = NotConfiguredTranscriber{EnvVars: []string{"STT_API_KEY"}}
	_, err := tx.Transcribe(context.Background(), nil, "en")
	if _, ok := err.(*apperr.NotConfiguredError); !ok {
		t.Fatalf("got %T, want *apperr.NotConfiguredError", err)
	}
}

func TestNotConfiguredSpeakerReturnsConfigError(t *testing.T) {
	var sp Speaker = NotConfiguredSpeaker{EnvVars: []string{"TTS_API_KEY"}}
	_, err := sp.Synthesize(context.Background(), "hello", "default")
	if _, ok := err.(*apperr.NotConfiguredError); !ok {
		t.Fatalf("got %T, want *apperr.NotConfiguredError", err)
	}
}

func TestStubTranscriberSatisfiesInterface(t *testing.T) {
	var tx Transcriber = stubTranscriber{text: "hello world"}
	got, err := tx.Transcribe(context.Background(), []byte{0x00}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q, want hello world", got)
	}
}

func TestStubSpeakerSatisfiesInterface(t *testing.T) {
	var sp Speaker = stubSpeaker{audio: []byte{1, 2, 3}}
	got, err := sp.Synthesize(context.Background(), "hello", "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bytes, want 3", len(got))
	}
}
