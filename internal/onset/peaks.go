package onset

import "sort"

// pickPeaks selects interior frame indices that are local flux maxima
// above threshold, co-occurring with an energy rise, spaced at least
// minSpacingFrames apart.
func pickPeaks(flux, deltaEnergy []float64, fluxThreshold, energyThreshold float64, minSpacingFrames int) []int {
	var picked []int
	lastAccepted := -minSpacingFrames

	for i := 1; i < len(flux)-1; i++ {
		if flux[i] <= fluxThreshold {
			continue
		}
		if !(flux[i] > flux[i-1] && flux[i] >= flux[i+1]) {
			continue
		}
		if deltaEnergy[i] < energyThreshold {
			continue
		}
		if i-lastAccepted < minSpacingFrames {
			continue
		}
		picked = append(picked, i)
		lastAccepted = i
	}
	return picked
}

// capByStrength keeps at most maxOnsets onsets, the strongest by
// Strength, restoring time order afterward.
func capByStrength(onsets []Onset, maxOnsets int) []Onset {
	if len(onsets) <= maxOnsets {
		return onsets
	}
	kept := append([]Onset(nil), onsets...)
	sort.Slice(kept, func(i, j int) bool { return kept[i].Strength > kept[j].Strength })
	kept = kept[:maxOnsets]
	sort.Slice(kept, func(i, j int) bool { return kept[i].TMs < kept[j].TMs })
	return kept
}

// refineTimeDomain nudges each onset's time to the sample within
// +/-refineWindowMs of the frame centre that maximizes |x[n]-x[n-1]|.
func refineTimeDomain(onsets []Onset, x []float64, sampleRate int, refineWindowMs float64, frameSize int) []Onset {
	windowSamples := int(refineWindowMs / 1000 * float64(sampleRate))
	refined := make([]Onset, len(onsets))
	for i, o := range onsets {
		centerSample := int(o.TMs/1000*float64(sampleRate)) + frameSize/2
		lo := max(1, centerSample-windowSamples)
		hi := min(len(x)-1, centerSample+windowSamples)

		bestN := centerSample
		bestDiff := -1.0
		for n := lo; n <= hi; n++ {
			d := x[n] - x[n-1]
			if d < 0 {
				d = -d
			}
			if d > bestDiff {
				bestDiff = d
				bestN = n
			}
		}
		refined[i] = Onset{
			TMs:        1000 * float64(bestN) / float64(sampleRate),
			Strength:   o.Strength,
			Confidence: o.Confidence,
		}
	}
	return refined
}

// dedupe collapses onsets closer than minSpacingMs, keeping the strongest
// in each cluster, and returns the result in time order.
func dedupe(onsets []Onset, minSpacingMs float64) []Onset {
	if len(onsets) == 0 {
		return onsets
	}
	sorted := append([]Onset(nil), onsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TMs < sorted[j].TMs })

	var out []Onset
	cluster := []Onset{sorted[0]}

	flush := func() {
		best := cluster[0]
		for _, c := range cluster[1:] {
			if c.Strength > best.Strength {
				best = c
			}
		}
		out = append(out, best)
	}

	for i := 1; i < len(sorted); i++ {
		if sorted[i].TMs-cluster[len(cluster)-1].TMs < minSpacingMs {
			cluster = append(cluster, sorted[i])
			continue
		}
		flush()
		cluster = []Onset{sorted[i]}
	}
	flush()

	sort.Slice(out, func(i, j int) bool { return out[i].TMs < out[j].TMs })
	return out
}
