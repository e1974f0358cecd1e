package onset

import (
	"math"
	"testing"
)

// burstSignal synthesizes silence with short cosine bursts at the given
// millisecond offsets, mimicking consonant attacks in a vocal take.
func burstSignal(sampleRate int, totalMs float64, burstMs []float64, burstDurationMs, freqHz float64) []float32 {
	n := int(totalMs / 1000 * float64(sampleRate))
	samples := make([]float32, n)
	burstSamples := int(burstDurationMs / 1000 * float64(sampleRate))

	for _, startMs := range burstMs {
		start := int(startMs / 1000 * float64(sampleRate))
		for i := 0; i < burstSamples && start+i < n; i++ {
			t := float64(i) / float64(sampleRate)
			samples[start+i] = float32(math.Cos(2 * math.Pi * freqHz * t))
		}
	}
	return samples
}

func TestDetectFindsBursts(t *testing.T) {
	sampleRate := 16000
	stepMs := 60000.0 / 120 / 4
	var bursts []float64
	for n := range 10 {
		bursts = append(bursts, 500+float64(n)*stepMs)
	}
	samples := burstSignal(sampleRate, 2200, bursts, 10, 4000)

	onsets := Detect(samples, sampleRate, DefaultConfig())
	if len(onsets) < 4 {
		t.Fatalf("got %d onsets, want at least 4", len(onsets))
	}
	for _, o := range onsets {
		if o.TMs < 30 {
			t.Fatalf("onset at %f ms violates tMs >= 30 invariant", o.TMs)
		}
		if o.Confidence < 0 || o.Confidence > 1 {
			t.Fatalf("confidence %f out of [0,1]", o.Confidence)
		}
	}
}

func TestDetectEmptyOnSilence(t *testing.T) {
	samples := make([]float32, 16000)
	onsets := Detect(samples, 16000, DefaultConfig())
	if len(onsets) != 0 {
		t.Fatalf("expected no onsets on silence, got %d", len(onsets))
	}
}

func TestDedupeCollapsesCloseOnsets(t *testing.T) {
	onsets := []Onset{
		{TMs: 100, Strength: 1, Confidence: 0.5},
		{TMs: 120, Strength: 2, Confidence: 0.9},
		{TMs: 300, Strength: 1, Confidence: 0.5},
	}
	out := dedupe(onsets, 60)
	if len(out) != 2 {
		t.Fatalf("got %d onsets after dedupe, want 2", len(out))
	}
	if out[0].Strength != 2 {
		t.Fatalf("expected strongest onset kept, got strength %f", out[0].Strength)
	}
}
