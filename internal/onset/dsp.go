package onset

import "math"

const (
	hpfCutoffHz = 80
	preEmphasis = 0.97
)

// preprocess applies, in order: mean-removal DC blocking, a one-pole
// high-pass filter at 80 Hz, and pre-emphasis. Each stage is a small
// stateful pass over the signal, mirroring the VAD package's style of
// composing single-purpose filter functions.
func preprocess(samples []float32, sampleRate int) []float64 {
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}

	x = dcBlock(x)
	x = highPassOnePole(x, sampleRate, hpfCutoffHz)
	x = preEmphasize(x, preEmphasis)
	return x
}

func dcBlock(x []float64) []float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

// highPassOnePole implements y[n] = alpha*(y[n-1] + x[n] - x[n-1]) with a
// time-constant formulation alpha = RC/(RC+dt).
func highPassOnePole(x []float64, sampleRate int, cutoffHz float64) []float64 {
	if len(x) == 0 {
		return x
	}
	dt := 1.0 / float64(sampleRate)
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	alpha := rc / (rc + dt)

	out := make([]float64, len(x))
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha * (out[i-1] + x[i] - x[i-1])
	}
	return out
}

func preEmphasize(x []float64, coeff float64) []float64 {
	if len(x) == 0 {
		return x
	}
	out := make([]float64, len(x))
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - coeff*x[i-1]
	}
	return out
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range n {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func frameSignal(x []float64, frameSize, hopSize int) [][]float64 {
	if len(x) < frameSize {
		return nil
	}
	var frames [][]float64
	for start := 0; start+frameSize <= len(x); start += hopSize {
		frames = append(frames, x[start:start+frameSize])
	}
	return frames
}
