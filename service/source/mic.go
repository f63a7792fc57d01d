package source

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

const (
	captureSampleRate = 48000
	captureChannels   = 2
	// ~2s of buffered audio before the oldest samples are discarded.
	captureRingSamples = captureSampleRate * captureChannels * 2
)

// MicSource captures microphone (or, where the backend supports it,
// system loopback) audio through miniaudio. Samples arrive on the device
// callback thread and are drained by the mix graph via Read.
type MicSource struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	ring   []float32
	closed bool
}

// OpenMic acquires the default capture device.
func OpenMic() (*MicSource, error) {
	return openCapture(malgo.Capture)
}

// OpenSystemLoopback acquires the system audio loopback device. Only some
// backends (WASAPI) support loopback; elsewhere this reports ErrUnavailable.
func OpenSystemLoopback() (*MicSource, error) {
	return openCapture(malgo.Loopback)
}

func openCapture(kind malgo.DeviceType) (*MicSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debugf("miniaudio: %s", message)
	})
	if err != nil {
		return nil, fmt.Errorf("source: audio context init failed: %w", ErrUnavailable)
	}
	src := &MicSource{ctx: ctx}

	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = captureChannels
	cfg.SampleRate = captureSampleRate
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			src.push(input, int(frameCount)*captureChannels)
		},
	}
	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("source: capture device init failed (%v): %w", err, ErrUnavailable)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("source: capture device start failed (%v): %w", err, ErrUnavailable)
	}
	src.device = device
	return src, nil
}

func (m *MicSource) push(input []byte, samples int) {
	if len(input) < samples*4 {
		samples = len(input) / 4
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for i := 0; i < samples; i++ {
		bits := binary.LittleEndian.Uint32(input[i*4:])
		m.ring = append(m.ring, float32(math.Float32frombits(bits)))
	}
	if over := len(m.ring) - captureRingSamples; over > 0 {
		m.ring = append(m.ring[:0], m.ring[over:]...)
	}
}

func (m *MicSource) Read(dst []float32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrUnavailable
	}
	n := copy(dst, m.ring)
	m.ring = append(m.ring[:0], m.ring[n:]...)
	return n, nil
}

func (m *MicSource) SampleRate() int { return captureSampleRate }
func (m *MicSource) Channels() int   { return captureChannels }

// Close stops and releases the device and context. Idempotent.
func (m *MicSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	device := m.device
	ctx := m.ctx
	m.device = nil
	m.ctx = nil
	m.ring = nil
	m.mu.Unlock()
	if device != nil {
		device.Uninit()
	}
	if ctx != nil {
		if err := ctx.Uninit(); err != nil {
			logger.Warnf("audio context teardown: %v", err)
		}
		ctx.Free()
	}
	return nil
}
