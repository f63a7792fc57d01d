package source

import (
	"image"
	"image/color"
	"math"
	"sync"
)

// PatternSource is an in-process FrameSource producing a flat-colored
// frame. Warmup delays the first decodable frame by that many Frame
// calls, mimicking a capture element that is still spinning up.
type PatternSource struct {
	mu     sync.Mutex
	bounds image.Rectangle
	fill   color.RGBA
	warmup int
	calls  int
	closed bool
}

func NewPatternSource(width, height int, fill color.RGBA, warmup int) *PatternSource {
	return &PatternSource{
		bounds: image.Rect(0, 0, width, height),
		fill:   fill,
		warmup: warmup,
	}
}

func (p *PatternSource) Frame() (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrUnavailable
	}
	p.calls++
	if p.calls <= p.warmup {
		return nil, ErrNoFrame
	}
	img := image.NewRGBA(p.bounds)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = p.fill.R
		img.Pix[i+1] = p.fill.G
		img.Pix[i+2] = p.fill.B
		img.Pix[i+3] = 255
	}
	return img, nil
}

func (p *PatternSource) Bounds() image.Rectangle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bounds
}

func (p *PatternSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close has been called. Test hook.
func (p *PatternSource) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ToneSource is an in-process AudioSource producing a sine tone at the
// given frequency and amplitude. Read synthesizes on demand, so the
// source never under-runs.
type ToneSource struct {
	mu        sync.Mutex
	freq      float64
	amplitude float64
	rate      int
	channels  int
	phase     float64
	closed    bool
}

func NewToneSource(freq, amplitude float64) *ToneSource {
	return &ToneSource{
		freq:      freq,
		amplitude: amplitude,
		rate:      captureSampleRate,
		channels:  captureChannels,
	}
}

func (t *ToneSource) Read(dst []float32) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrUnavailable
	}
	step := 2 * math.Pi * t.freq / float64(t.rate)
	for i := 0; i+t.channels <= len(dst); i += t.channels {
		sample := float32(t.amplitude * math.Sin(t.phase))
		for ch := 0; ch < t.channels; ch++ {
			dst[i+ch] = sample
		}
		t.phase += step
	}
	n := len(dst) - len(dst)%t.channels
	return n, nil
}

func (t *ToneSource) SampleRate() int { return t.rate }
func (t *ToneSource) Channels() int   { return t.channels }

func (t *ToneSource) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed reports whether Close has been called. Test hook.
func (t *ToneSource) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
