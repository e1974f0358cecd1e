package external

import "context"

// stubTranscriber and stubSpeaker give this package's tests something to
// wire in place of a real provider without reaching the network.
type stubTranscriber struct{ text string }

func (s stubTranscriber) Transcribe(ctx context.Context, wavBytes []byte, language string) (string, error) {
	return s.text, nil
}

type stubSpeaker struct{ audio []byte }

func (s stubSpeaker) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return s.audio, nil
}
