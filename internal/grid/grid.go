// Package grid scores a sequence of onset times against a regular rhythmic
// grid: it estimates the grid's phase offset, classifies each event as
// on/early/late, and aggregates timing statistics.
package grid

import "math"

// Kind names the grid's subdivision of the beat.
type Kind string

const (
	KindBeat      Kind = "beat"
	KindEighth    Kind = "8th"
	KindSixteenth Kind = "16th"
)

// ParseKind returns the Kind named by s, defaulting to KindSixteenth for
// an empty string. The second return is false for an unrecognized name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindBeat, KindEighth, KindSixteenth:
		return Kind(s), true
	case "":
		return KindSixteenth, true
	default:
		return "", false
	}
}

// divisor returns how many grid steps fit in one beat.
func (k Kind) divisor() float64 {
	switch k {
	case KindEighth:
		return 2
	case KindSixteenth:
		return 4
	default:
		return 1
	}
}

// StepMsFor converts a tempo and subdivision into the grid step duration:
// 60000/BPM divided by 1, 2, or 4.
func StepMsFor(bpm float64, kind Kind) float64 {
	if bpm <= 0 {
		return 0
	}
	return 60000 / bpm / kind.divisor()
}

// Grid describes a regular timing lattice: events are expected every StepMs
// starting at PhaseMs, with ToleranceMs defining the on-time window.
type Grid struct {
	Kind        Kind    `json:"kind"`
	StepMs      float64 `json:"stepMs"`
	PhaseMs     float64 `json:"phaseMs"`
	ToleranceMs float64 `json:"toleranceMs"`
}

// Class is the timing classification of a single event.
type Class string

const (
	ClassOn    Class = "on"
	ClassEarly Class = "early"
	ClassLate  Class = "late"
)

// TimingEvent is one scored onset against the grid.
type TimingEvent struct {
	TMs         float64 `json:"tMs"`
	ExpectedMs  float64 `json:"expectedMs"`
	DeviationMs float64 `json:"deviationMs"`
	Class       Class   `json:"class"`
	Confidence  float64 `json:"confidence"`
}

// Stats aggregates a set of TimingEvents. A positive AvgOffsetMs means the
// performer is systematically late.
type Stats struct {
	EventCount  int     `json:"eventCount"`
	OnTimePct   float64 `json:"onTimePct"`
	MeanAbsMs   float64 `json:"meanAbsMs"`
	StdDevMs    float64 `json:"stdDevMs"`
	AvgOffsetMs float64 `json:"avgOffsetMs"`
}

// Score is the full output of scoring onsets against a grid.
type Score struct {
	Kind        Kind          `json:"grid"`
	StepMs      float64       `json:"stepMs"`
	PhaseMs     float64       `json:"phaseMs"`
	ToleranceMs float64       `json:"toleranceMs"`
	Events      []TimingEvent `json:"events"`
	Stats       Stats         `json:"stats"`
}

const (
	defaultResolutionMs = 1.0
	defaultMaxEvents    = 180
)

// expectedMs returns the nearest grid line to tMs for the given phase/step.
func expectedMs(tMs, phaseMs, stepMs float64) float64 {
	return phaseMs + math.Round((tMs-phaseMs)/stepMs)*stepMs
}

// EstimatePhase sweeps candidate phases in [0, stepMs) at resolutionMs
// increments and returns the one minimizing mean absolute deviation of the
// onset times from the resulting grid lines. resolutionMs<=0 uses the
// default of 1ms.
func EstimatePhase(onsetsMs []float64, stepMs, resolutionMs float64) float64 {
	if resolutionMs <= 0 {
		resolutionMs = defaultResolutionMs
	}
	if len(onsetsMs) == 0 || stepMs <= 0 {
		return 0
	}

	bestPhase := 0.0
	bestScore := math.Inf(1)

	for p := 0.0; p < stepMs; p += resolutionMs {
		var sum float64
		for _, t := range onsetsMs {
			dev := t - expectedMs(t, p, stepMs)
			if dev < 0 {
				dev = -dev
			}
			sum += dev
		}
		mean := sum / float64(len(onsetsMs))
		if mean < bestScore {
			bestScore = mean
			bestPhase = p
		}
	}
	return bestPhase
}

// ScoreOnsets classifies each onset (with its detector confidence in
// srcConfidence, parallel to onsetsMs) against a grid of the given
// kind/step/tolerance, estimating phase if phaseMs is negative. At most
// maxEvents onsets are scored; maxEvents<=0 uses the default of 180.
func ScoreOnsets(kind Kind, onsetsMs []float64, srcConfidence []float64, stepMs, toleranceMs, phaseMs float64, maxEvents int) Score {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	if len(onsetsMs) > maxEvents {
		onsetsMs = onsetsMs[:maxEvents]
		if len(srcConfidence) > maxEvents {
			srcConfidence = srcConfidence[:maxEvents]
		}
	}

	if phaseMs < 0 {
		phaseMs = EstimatePhase(onsetsMs, stepMs, defaultResolutionMs)
	}

	events := make([]TimingEvent, len(onsetsMs))
	var sumAbs, sumDev, sumSq float64
	onTime := 0

	for i, t := range onsetsMs {
		exp := expectedMs(t, phaseMs, stepMs)
		dev := t - exp
		absDev := math.Abs(dev)

		class := ClassOn
		if absDev > toleranceMs {
			if dev < 0 {
				class = ClassEarly
			} else {
				class = ClassLate
			}
		} else {
			onTime++
		}

		src := 1.0
		if i < len(srcConfidence) {
			src = srcConfidence[i]
		}
		half := stepMs / 2
		norm := clamp01(absDev / half)
		conf := src * (0.55 + 0.45*(1-norm))

		events[i] = TimingEvent{
			TMs:         t,
			ExpectedMs:  exp,
			DeviationMs: dev,
			Class:       class,
			Confidence:  conf,
		}

		sumAbs += absDev
		sumDev += dev
		sumSq += dev * dev
	}

	n := len(events)
	stats := Stats{EventCount: n}
	if n > 0 {
		stats.OnTimePct = 100 * float64(onTime) / float64(n)
		stats.MeanAbsMs = sumAbs / float64(n)
		stats.AvgOffsetMs = sumDev / float64(n)
		meanDev := stats.AvgOffsetMs
		variance := sumSq/float64(n) - meanDev*meanDev
		if variance < 0 {
			variance = 0
		}
		stats.StdDevMs = math.Sqrt(variance)
	}

	return Score{
		Kind:        kind,
		StepMs:      stepMs,
		PhaseMs:     phaseMs,
		ToleranceMs: toleranceMs,
		Events:      events,
		Stats:       stats,
	}
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
