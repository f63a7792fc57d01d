// Package audio combines the optional system and microphone sources into
// one mixed PCM stream with independent live gains and a mic level meter.
package audio

import (
	"sync"

	"Reel/service/source"

	"github.com/kataras/golog"
)

var logger = golog.Child("[audio]")

// Topology describes which sources feed the graph.
type Topology int

const (
	MixNone Topology = iota
	MixSystemOnly
	MixMicOnly
	MixBoth
)

func (t Topology) String() string {
	switch t {
	case MixSystemOnly:
		return `system`
	case MixMicOnly:
		return `mic`
	case MixBoth:
		return `system+mic`
	}
	return `none`
}

// HasAudio reports whether the graph produces any output at all.
func (t Topology) HasAudio() bool { return t != MixNone }

// Config carries the initial gain and suppression settings.
type Config struct {
	SystemVolume     float64
	MicVolume        float64
	NoiseSuppression bool
}

// gate threshold: mic blocks whose RMS falls below this are muted when
// noise suppression is on.
const gateRMS = 0.02

// MixGraph owns the gain stages and the mic analyser. It does not own
// the sources themselves; the capture session releases those.
type MixGraph struct {
	mu sync.Mutex

	system, mic source.AudioSource
	systemGain  float64
	micGain     float64
	suppress    bool
	topology    Topology

	meter *levelMeter

	scratchSys []float32
	scratchMic []float32

	started bool
	stopped bool
}

func NewMixGraph() *MixGraph {
	return &MixGraph{meter: newLevelMeter()}
}

// Start wires the present sources into the graph. Either source may be
// nil; with neither present the topology is MixNone and Read produces
// nothing, which is not an error.
func (g *MixGraph) Start(system, mic source.AudioSource, cfg Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started && !g.stopped {
		return nil
	}
	g.system = system
	g.mic = mic
	g.systemGain = clamp01(cfg.SystemVolume)
	g.micGain = clamp01(cfg.MicVolume)
	g.suppress = cfg.NoiseSuppression
	switch {
	case system != nil && mic != nil:
		g.topology = MixBoth
	case system != nil:
		g.topology = MixSystemOnly
	case mic != nil:
		g.topology = MixMicOnly
	default:
		g.topology = MixNone
	}
	g.started = true
	g.stopped = false
	logger.Infof("mix graph started topology=%s", g.topology)
	return nil
}

// Topology returns the wiring decided at Start.
func (g *MixGraph) Topology() Topology {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topology
}

// SetSystemVolume updates the system gain without interrupting the stream.
func (g *MixGraph) SetSystemVolume(v float64) {
	g.mu.Lock()
	g.systemGain = clamp01(v)
	g.mu.Unlock()
}

// SetMicVolume updates the mic gain without interrupting the stream.
func (g *MixGraph) SetMicVolume(v float64) {
	g.mu.Lock()
	g.micGain = clamp01(v)
	g.mu.Unlock()
}

// SampleRate reports the output sample rate, or 0 with no sources.
func (g *MixGraph) SampleRate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mic != nil {
		return g.mic.SampleRate()
	}
	if g.system != nil {
		return g.system.SampleRate()
	}
	return 0
}

// Channels reports the output channel count, or 0 with no sources.
func (g *MixGraph) Channels() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mic != nil {
		return g.mic.Channels()
	}
	if g.system != nil {
		return g.system.Channels()
	}
	return 0
}

// Read pulls from every wired source, applies the gains, and sums into
// dst. Only the microphone path feeds the level meter.
func (g *MixGraph) Read(dst []float32) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.stopped || g.topology == MixNone {
		return 0, nil
	}
	if cap(g.scratchSys) < len(dst) {
		g.scratchSys = make([]float32, len(dst))
		g.scratchMic = make([]float32, len(dst))
	}
	var nSys, nMic int
	if g.system != nil {
		nSys, _ = g.system.Read(g.scratchSys[:len(dst)])
	}
	if g.mic != nil {
		nMic, _ = g.mic.Read(g.scratchMic[:len(dst)])
		if g.suppress {
			gateBlock(g.scratchMic[:nMic])
		}
	}
	n := nSys
	if nMic > n {
		n = nMic
	}
	for i := 0; i < n; i++ {
		var sample float64
		if i < nSys {
			sample += float64(g.scratchSys[i]) * g.systemGain
		}
		if i < nMic {
			sample += float64(g.scratchMic[i]) * g.micGain
		}
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		dst[i] = float32(sample)
	}
	if nMic > 0 {
		g.meter.push(g.scratchMic[:nMic], g.micGain)
	}
	return n, nil
}

// Level is the current mic meter reading in [0, 1]; 0 after Stop.
func (g *MixGraph) Level() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.stopped {
		return 0
	}
	return g.meter.level()
}

// Stop disconnects the graph. Safe and idempotent even if Start was
// never called.
func (g *MixGraph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	g.system = nil
	g.mic = nil
	g.topology = MixNone
	g.meter.reset()
	if g.started {
		logger.Debug("mix graph stopped")
	}
}

// gateBlock mutes a block whose RMS is below the gate threshold.
func gateBlock(block []float32) {
	if len(block) == 0 {
		return
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	if sum/float64(len(block)) >= gateRMS*gateRMS {
		return
	}
	for i := range block {
		block[i] = 0
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
