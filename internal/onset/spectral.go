package onset

import (
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// analyzeFrames computes half-wave-rectified spectral flux (summed over the
// low-high Hz bin range) and windowed time-domain energy per frame.
func analyzeFrames(frames [][]float64, frameSize, sampleRate int, lowHz, highHz float64) (flux, energy []float64) {
	win := hannWindow(frameSize)
	plan, err := algofft.NewPlan64(frameSize)
	if err != nil {
		// frameSize is a small power of two (256) chosen by DefaultConfig;
		// a plan failure here means a caller passed an unsupported size.
		return make([]float64, len(frames)), make([]float64, len(frames))
	}

	loBin := freqToBin(lowHz, sampleRate, frameSize)
	hiBin := freqToBin(highHz, sampleRate, frameSize)
	if hiBin >= frameSize/2 {
		hiBin = frameSize/2 - 1
	}

	mags := make([][]float64, len(frames))
	energy = make([]float64, len(frames))

	in := make([]complex128, frameSize)
	out := make([]complex128, frameSize)

	for i, frame := range frames {
		var e float64
		for n, s := range frame {
			windowed := s * win[n]
			e += windowed * windowed
			in[n] = complex(windowed, 0)
		}
		energy[i] = e

		if err := plan.Forward(out, in); err != nil {
			mags[i] = make([]float64, frameSize/2+1)
			continue
		}
		mag := make([]float64, frameSize/2+1)
		for b := range mag {
			mag[b] = cmplx.Abs(out[b])
		}
		mags[i] = mag
	}

	flux = make([]float64, len(frames))
	for i := range frames {
		if i == 0 {
			continue
		}
		var sum float64
		for b := loBin; b <= hiBin; b++ {
			d := mags[i][b] - mags[i-1][b]
			if d > 0 {
				sum += d
			}
		}
		flux[i] = sum
	}

	return flux, energy
}

func freqToBin(freqHz float64, sampleRate, frameSize int) int {
	binHz := float64(sampleRate) / float64(frameSize)
	bin := int(freqHz/binHz + 0.5)
	if bin < 0 {
		return 0
	}
	return bin
}

func deltaPositive(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			out[i] = d
		}
	}
	return out
}
