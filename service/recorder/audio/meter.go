package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// meterWindow is the number of mic samples the analyser looks at.
const meterWindow = 1024

// levelMeter keeps a sliding window of post-gain mic samples and reduces
// it to one normalized magnitude per reading.
type levelMeter struct {
	window []float64
	filled int
}

func newLevelMeter() *levelMeter {
	return &levelMeter{window: make([]float64, meterWindow)}
}

func (m *levelMeter) push(samples []float32, gain float64) {
	n := len(samples)
	if n >= meterWindow {
		tail := samples[n-meterWindow:]
		for i, s := range tail {
			m.window[i] = float64(s) * gain
		}
		m.filled = meterWindow
		return
	}
	copy(m.window, m.window[n:])
	base := meterWindow - n
	for i, s := range samples {
		m.window[base+i] = float64(s) * gain
	}
	m.filled += n
	if m.filled > meterWindow {
		m.filled = meterWindow
	}
}

// level averages the frequency-domain magnitudes over the positive bins
// and normalizes to [0, 1]. A full-scale tone reads close to 1.
func (m *levelMeter) level() float64 {
	if m.filled == 0 {
		return 0
	}
	spectrum := fft.FFTReal(m.window)
	half := len(spectrum) / 2
	if half <= 1 {
		return 0
	}
	var sum float64
	for k := 1; k < half; k++ {
		sum += cmplx.Abs(spectrum[k])
	}
	// A sine of amplitude A concentrates |X| ~= A*N/2 in one bin, so the
	// per-bin average recovers A.
	avg := sum / float64(half-1)
	return math.Min(1, avg)
}

func (m *levelMeter) reset() {
	for i := range m.window {
		m.window[i] = 0
	}
	m.filled = 0
}
