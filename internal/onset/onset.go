// Package onset detects consonant-attack transients in mono PCM audio
// using an STFT spectral-flux + energy-rise picker with MAD-adaptive
// thresholds and time-domain refinement.
package onset

import "math"

// Onset is a detected transient.
type Onset struct {
	TMs        float64
	Strength   float64
	Confidence float64
}

// Config controls detection sensitivity. Zero-value fields fall back to
// DefaultConfig's values via Config.withDefaults.
type Config struct {
	FrameSize      int
	HopSize        int
	LowHz          float64
	HighHz         float64
	MinSpacingMs   float64
	MaxOnsets      int
	RefineWindowMs float64
}

// DefaultConfig is the standard analysis parameter set.
func DefaultConfig() Config {
	return Config{
		FrameSize:      256,
		HopSize:        64,
		LowHz:          2000,
		HighHz:         8000,
		MinSpacingMs:   60,
		MaxOnsets:      120,
		RefineWindowMs: 20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameSize == 0 {
		c.FrameSize = d.FrameSize
	}
	if c.HopSize == 0 {
		c.HopSize = d.HopSize
	}
	if c.LowHz == 0 {
		c.LowHz = d.LowHz
	}
	if c.HighHz == 0 {
		c.HighHz = d.HighHz
	}
	if c.MinSpacingMs == 0 {
		c.MinSpacingMs = d.MinSpacingMs
	}
	if c.MaxOnsets == 0 {
		c.MaxOnsets = d.MaxOnsets
	}
	if c.RefineWindowMs == 0 {
		c.RefineWindowMs = d.RefineWindowMs
	}
	return c
}

// Detect runs the full onset-detection pipeline on mono samples at
// sampleRate and returns onsets in time order.
func Detect(samples []float32, sampleRate int, cfg Config) []Onset {
	cfg = cfg.withDefaults()
	if len(samples) < cfg.FrameSize {
		return nil
	}

	x := preprocess(samples, sampleRate)

	frames := frameSignal(x, cfg.FrameSize, cfg.HopSize)
	if len(frames) < 3 {
		return nil
	}

	flux, energy := analyzeFrames(frames, cfg.FrameSize, sampleRate, cfg.LowHz, cfg.HighHz)
	deltaEnergy := deltaPositive(energy)

	fluxThreshold := robustThreshold(flux, 6)
	energyThreshold := robustThreshold(deltaEnergy, 4)

	hopMs := 1000 * float64(cfg.HopSize) / float64(sampleRate)
	minSpacingFrames := int(math.Ceil(cfg.MinSpacingMs / hopMs))

	picked := pickPeaks(flux, deltaEnergy, fluxThreshold, energyThreshold, minSpacingFrames)

	onsets := make([]Onset, 0, len(picked))
	for _, i := range picked {
		tMs := 1000 * float64(i*cfg.HopSize) / float64(sampleRate)
		conf := clamp01((flux[i] - fluxThreshold) / (2 * fluxThreshold))
		onsets = append(onsets, Onset{TMs: tMs, Strength: flux[i], Confidence: conf})
	}

	onsets = capByStrength(onsets, cfg.MaxOnsets)
	onsets = refineTimeDomain(onsets, x, sampleRate, cfg.RefineWindowMs, cfg.FrameSize)

	filtered := onsets[:0]
	for _, o := range onsets {
		if o.TMs >= 30 {
			filtered = append(filtered, o)
		}
	}

	return dedupe(filtered, cfg.MinSpacingMs)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
