// Package recorder ties source acquisition, frame composition, audio
// mixing, and encoding into one pause/resume-capable capture session
// with deterministic cleanup on every exit path.
package recorder

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"Reel/modules"
	"Reel/service/recorder/audio"
	"Reel/service/recorder/compositor"
	"Reel/service/recorder/encoder"
	"Reel/service/recorder/overlay"
	"Reel/service/recorder/region"
	"Reel/service/source"

	"github.com/kataras/golog"
)

var logger = golog.Child("[recorder]")

// State is the capture session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateRecording
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return `Requesting`
	case StateRecording:
		return `Recording`
	case StatePaused:
		return `Paused`
	case StateStopped:
		return `Stopped`
	}
	return `Idle`
}

var (
	ErrBadState    = errors.New(`recorder: operation not allowed in current state`)
	ErrNoSource    = errors.New(`recorder: no source acquired`)
	ErrNoArtifact  = errors.New(`recorder: no artifact available`)
	errNilProvider = errors.New(`recorder: nil source provider`)
)

// Config is the capture configuration supplied by the editor UI. Crop
// region and webcam settings are immutable once Start succeeds.
type Config struct {
	OutputWidth  int
	OutputHeight int
	FPS          int
	VideoBitrate int
	AudioBitrate int

	ContainerPreference []string
	CropRegion          *region.Region

	IncludeSystemAudio  bool
	IncludeMic          bool
	MicNoiseSuppression bool
	SystemVolume        float64
	MicVolume           float64

	Webcam  *compositor.WebcamConfig
	Overlay overlay.Toggles

	QueuePolicy   encoder.QueuePolicy
	QueueSize     int
	ChunkInterval time.Duration
}

func (c *Config) normalize() {
	if c.OutputWidth <= 0 {
		c.OutputWidth = 1280
	}
	if c.OutputHeight <= 0 {
		c.OutputHeight = 720
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.VideoBitrate <= 0 {
		c.VideoBitrate = 4_000_000
	}
	if c.AudioBitrate <= 0 {
		c.AudioBitrate = 128_000
	}
	if c.SystemVolume == 0 && c.MicVolume == 0 {
		c.SystemVolume = 1
		c.MicVolume = 1
	}
}

// Session is the top-level capture orchestrator. One Session maps to one
// recording attempt; Reset rearms it for the next.
type Session struct {
	provider source.Provider

	mu    sync.Mutex
	state State
	cfg   Config

	display  source.FrameSource
	webcam   source.FrameSource
	sysAudio source.AudioSource
	micAudio source.AudioSource

	mix       *audio.MixGraph
	comp      *compositor.Compositor
	enc       *encoder.Session
	collector *overlay.Collector
	listener  *overlay.Listener

	startAt     time.Time
	pauseStart  time.Time
	pausedAccum time.Duration

	artifact     *encoder.Artifact
	finalElapsed time.Duration
	errFlag      bool
	released     bool

	tickMu   sync.Mutex
	tickQuit chan struct{}
	tickDone chan struct{}

	metrics sessionMetrics
	events  chan modules.ErrorEvent

	now          func() time.Time
	pollInterval time.Duration
	hookOverlays bool
}

// Option tweaks session construction; used by tests to inject clocks.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPollInterval changes how often the tick loop checks the throttle.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// WithGlobalHooks enables the global input hook while recording, feeding
// the overlay collector with real pointer/key events.
func WithGlobalHooks() Option {
	return func(s *Session) { s.hookOverlays = true }
}

func NewSession(provider source.Provider, opts ...Option) *Session {
	s := &Session{
		provider:     provider,
		state:        StateIdle,
		events:       make(chan modules.ErrorEvent, 8),
		now:          time.Now,
		pollInterval: 4 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Errors exposes the asynchronous error-event channel for in-flight
// faults that have no synchronous caller.
func (s *Session) Errors() <-chan modules.ErrorEvent {
	return s.events
}

// RequestSource acquires the display plus whatever optional sources the
// config asks for. On success the session holds the handles and stays
// Idle; on failure every partially acquired handle is released.
func (s *Session) RequestSource(cfg Config) error {
	if s.provider == nil {
		return errNilProvider
	}
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: RequestSource in %s", ErrBadState, s.state)
	}
	s.state = StateRequesting
	s.mu.Unlock()

	cfg.normalize()
	display, err := s.provider.AcquireDisplay()
	if err != nil {
		return s.failAcquire(err, nil)
	}
	acquired := []func() error{display.Close}

	var sysAudio, micAudio source.AudioSource
	if cfg.IncludeSystemAudio {
		sysAudio, err = s.provider.AcquireSystemAudio()
		if err != nil {
			return s.failAcquire(err, acquired)
		}
		acquired = append(acquired, sysAudio.Close)
	}
	if cfg.IncludeMic {
		micAudio, err = s.provider.AcquireMic()
		if err != nil {
			return s.failAcquire(err, acquired)
		}
		acquired = append(acquired, micAudio.Close)
	}
	var webcam source.FrameSource
	if cfg.Webcam != nil {
		webcam, err = s.provider.AcquireWebcam()
		if err != nil {
			return s.failAcquire(err, acquired)
		}
	}

	// A re-pick while Idle replaces the previous acquisition; release
	// those handles before the new ones take their place.
	s.releaseAll()

	s.mu.Lock()
	s.cfg = cfg
	s.display = display
	s.sysAudio = sysAudio
	s.micAudio = micAudio
	s.webcam = webcam
	s.released = false
	s.state = StateIdle
	s.mu.Unlock()
	logger.Infof("sources acquired display=%dx%d systemAudio=%v mic=%v webcam=%v",
		display.Bounds().Dx(), display.Bounds().Dy(), sysAudio != nil, micAudio != nil, webcam != nil)
	return nil
}

func (s *Session) failAcquire(err error, acquired []func() error) error {
	for i := len(acquired) - 1; i >= 0; i-- {
		if cerr := acquired[i](); cerr != nil {
			logger.Warnf("%s during acquire rollback: %v", modules.ErrKindResourceCleanup, cerr)
		}
	}
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	kind := classifyAcquire(err)
	logger.Warnf("source acquisition failed (%s): %v", kind, err)
	return fmt.Errorf("%s: %w", kind, err)
}

func classifyAcquire(err error) string {
	if errors.Is(err, source.ErrPermission) {
		return modules.ErrKindPermissionDenied
	}
	return modules.ErrKindSourceUnavailable
}

// Start builds the mix graph and compositor, negotiates the container,
// and begins the tick scheduler: Idle -> Recording. A negotiation
// failure is fatal to this start only; the session stays Idle with its
// sources intact.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: Start in %s", ErrBadState, s.state)
	}
	if s.display == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	cfg := s.cfg
	display := s.display
	sysAudio, micAudio := s.sysAudio, s.micAudio
	s.mu.Unlock()

	mix := audio.NewMixGraph()
	if sysAudio != nil || micAudio != nil {
		_ = mix.Start(sysAudio, micAudio, audio.Config{
			SystemVolume:     cfg.SystemVolume,
			MicVolume:        cfg.MicVolume,
			NoiseSuppression: cfg.MicNoiseSuppression,
		})
	}

	encCfg := encoder.Config{
		Width:        cfg.OutputWidth,
		Height:       cfg.OutputHeight,
		FPS:          cfg.FPS,
		VideoBitrate: cfg.VideoBitrate,
		AudioBitrate: cfg.AudioBitrate,
		HasAudio:     mix.Topology().HasAudio(),
		SampleRate:   mix.SampleRate(),
		Channels:     mix.Channels(),
	}
	muxer, err := encoder.Instance().Negotiate(cfg.ContainerPreference, encCfg)
	if err != nil {
		mix.Stop()
		logger.Warnf("%s: %v", modules.ErrKindEncoderInit, err)
		return fmt.Errorf("%s: %w", modules.ErrKindEncoderInit, err)
	}

	var audioTap encoder.PCMReader
	if encCfg.HasAudio {
		audioTap = mix
	}
	enc := encoder.NewSession(muxer, encCfg, audioTap, encoder.Options{
		QueueSize:     cfg.QueueSize,
		Policy:        cfg.QueuePolicy,
		ChunkInterval: cfg.ChunkInterval,
		OnError:       s.handleEncoderFault,
	})

	bounds := display.Bounds()
	collector := overlay.NewCollector(bounds.Dx(), bounds.Dy(), cfg.Overlay)
	comp := compositor.New(compositor.Config{
		OutputWidth:  cfg.OutputWidth,
		OutputHeight: cfg.OutputHeight,
		Region:       cfg.CropRegion,
		Webcam:       cfg.Webcam,
	})

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		mix.Stop()
		enc.Abort()
		return fmt.Errorf("%w: Start raced with %s", ErrBadState, s.state)
	}
	s.mix = mix
	s.enc = enc
	s.comp = comp
	s.collector = collector
	s.startAt = s.now()
	s.pausedAccum = 0
	s.pauseStart = time.Time{}
	s.artifact = nil
	s.errFlag = false
	s.metrics.reset()
	s.tickQuit = make(chan struct{})
	s.tickDone = make(chan struct{})
	s.state = StateRecording
	if s.hookOverlays {
		s.listener = overlay.NewListener(collector)
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Start()
	}
	enc.Start()
	go s.tickLoop(s.tickQuit, s.tickDone)
	logger.Infof("recording started %dx%d@%dfps container=%s", cfg.OutputWidth, cfg.OutputHeight, cfg.FPS, muxer.Name())
	return nil
}

// Pause halts the tick scheduler and suspends chunk emission:
// Recording -> Paused. By the time Pause returns, no further frame is
// written into the encoder queue.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return fmt.Errorf("%w: Pause in %s", ErrBadState, s.state)
	}
	s.state = StatePaused
	s.pauseStart = s.now()
	enc := s.enc
	s.mu.Unlock()

	// Wait out any tick already executing; later ticks observe Paused.
	s.tickMu.Lock()
	s.tickMu.Unlock() //nolint:staticcheck // barrier, not a critical section
	if enc != nil {
		enc.Pause()
	}
	logger.Debug("recording paused")
	return nil
}

// Resume restarts the scheduler and chunk emission: Paused -> Recording.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return fmt.Errorf("%w: Resume in %s", ErrBadState, s.state)
	}
	s.pausedAccum += s.now().Sub(s.pauseStart)
	s.pauseStart = time.Time{}
	s.state = StateRecording
	enc := s.enc
	s.mu.Unlock()
	if enc != nil {
		enc.Resume()
	}
	logger.Debug("recording resumed")
	return nil
}

// Stop flushes the encoder, releases every acquired handle, and
// transitions to Stopped, returning the artifact.
func (s *Session) Stop() (*encoder.Artifact, error) {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: Stop in %s", ErrBadState, s.state)
	}
	if s.state == StatePaused {
		s.pausedAccum += s.now().Sub(s.pauseStart)
		s.pauseStart = time.Time{}
	}
	duration := s.now().Sub(s.startAt) - s.pausedAccum
	s.finalElapsed = duration
	enc := s.enc
	tickQuit, tickDone := s.tickQuit, s.tickDone
	s.state = StateStopped
	s.mu.Unlock()

	stopTicker(tickQuit, tickDone)
	var artifact *encoder.Artifact
	var err error
	if enc != nil {
		artifact, err = enc.Stop(duration)
	}
	s.releaseAll()

	s.mu.Lock()
	s.artifact = artifact
	if err != nil {
		s.errFlag = true
	}
	s.mu.Unlock()

	if err != nil {
		s.emit(modules.ErrKindEncoding, err.Error())
		return nil, fmt.Errorf("%s: %w", modules.ErrKindEncoding, err)
	}
	logger.Infof("recording stopped duration=%.2fs artifact=%dB", duration.Seconds(), len(artifact.Data))
	return artifact, nil
}

// Reset discards the artifact and configuration: Stopped -> Idle.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("%w: Reset in %s", ErrBadState, s.state)
	}
	s.mu.Unlock()

	s.releaseAll()

	s.mu.Lock()
	s.artifact = nil
	s.cfg = Config{}
	s.errFlag = false
	s.startAt = time.Time{}
	s.pausedAccum = 0
	s.finalElapsed = 0
	s.enc = nil
	s.comp = nil
	s.metrics.reset()
	s.state = StateIdle
	s.mu.Unlock()
	logger.Debug("session reset")
	return nil
}

// Elapsed is the recording time net of pauses; frozen while Paused.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	switch s.state {
	case StateRecording:
		return s.now().Sub(s.startAt) - s.pausedAccum
	case StatePaused:
		return s.pauseStart.Sub(s.startAt) - s.pausedAccum
	case StateStopped:
		if s.artifact != nil {
			return s.artifact.Duration
		}
		return s.finalElapsed
	}
	return 0
}

// Status reports the live state for the UI stream.
func (s *Session) Status() modules.Status {
	s.mu.Lock()
	state := s.state
	elapsed := s.elapsedLocked()
	mix := s.mix
	enc := s.enc
	errFlag := s.errFlag
	s.mu.Unlock()

	status := modules.Status{
		State:          state.String(),
		ElapsedSeconds: elapsed.Seconds(),
		HasError:       errFlag,
	}
	if mix != nil {
		status.MicLevel = mix.Level()
	}
	frames, dropped, highWater, lastError := s.metrics.snapshot()
	metrics := &modules.Metrics{
		FramesComposited: frames,
		FramesDropped:    dropped,
		QueueHighWater:   highWater,
		LastError:        lastError,
	}
	if enc != nil {
		chunks, bytes, encDropped := enc.Counters()
		metrics.EncoderChunks = chunks
		metrics.EncodedBytes = bytes
		metrics.FramesDropped += encDropped
	}
	status.Metrics = metrics
	return status
}

// Artifact returns the finished media object after Stop.
func (s *Session) Artifact() (*encoder.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return nil, ErrNoArtifact
	}
	return s.artifact, nil
}

// Salvage exposes partial chunks after a mid-session fault, for callers
// that opt to keep them.
func (s *Session) Salvage() [][]byte {
	s.mu.Lock()
	enc := s.enc
	s.mu.Unlock()
	if enc == nil {
		return nil
	}
	return enc.Salvage()
}

// SetSystemVolume live-updates the system gain.
func (s *Session) SetSystemVolume(v float64) {
	s.mu.Lock()
	mix := s.mix
	s.mu.Unlock()
	if mix != nil {
		mix.SetSystemVolume(v)
	}
}

// SetMicVolume live-updates the mic gain.
func (s *Session) SetMicVolume(v float64) {
	s.mu.Lock()
	mix := s.mix
	s.mu.Unlock()
	if mix != nil {
		mix.SetMicVolume(v)
	}
}

// Collector exposes the overlay collector so embedding applications can
// feed synthetic input events.
func (s *Session) Collector() *overlay.Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collector
}

// handleEncoderFault aborts an active session on a mid-session fault.
func (s *Session) handleEncoderFault(err error) {
	s.metrics.recordError(err)
	s.emit(modules.ErrKindEncoding, err.Error())
	go s.abortOnFault()
}

func (s *Session) abortOnFault() {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	if s.state == StatePaused {
		s.finalElapsed = s.pauseStart.Sub(s.startAt) - s.pausedAccum
	} else {
		s.finalElapsed = s.now().Sub(s.startAt) - s.pausedAccum
	}
	s.state = StateStopped
	s.errFlag = true
	enc := s.enc
	tickQuit, tickDone := s.tickQuit, s.tickDone
	s.mu.Unlock()

	stopTicker(tickQuit, tickDone)
	if enc != nil {
		enc.Abort()
	}
	s.releaseAll()
	logger.Warn("session aborted after encoder fault")
}

// releaseAll releases every acquired handle exactly once. Cleanup errors
// are logged and swallowed; cleanup must always appear to succeed.
func (s *Session) releaseAll() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	display, webcam := s.display, s.webcam
	sysAudio, micAudio := s.sysAudio, s.micAudio
	mix := s.mix
	listener := s.listener
	collector := s.collector
	s.display = nil
	s.webcam = nil
	s.sysAudio = nil
	s.micAudio = nil
	s.mix = nil
	s.listener = nil
	s.collector = nil
	s.mu.Unlock()

	if listener != nil {
		listener.Stop()
	}
	if collector != nil {
		collector.Reset()
	}
	if mix != nil {
		mix.Stop()
	}
	closeQuiet(display)
	closeQuiet(webcam)
	closeQuiet(sysAudio)
	closeQuiet(micAudio)
}

func closeQuiet(c interface{ Close() error }) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warnf("%s: %v", modules.ErrKindResourceCleanup, err)
	}
}

func (s *Session) emit(kind, message string) {
	event := modules.ErrorEvent{Kind: kind, Message: message, Timestamp: s.now().UnixMilli()}
	select {
	case s.events <- event:
	default:
		logger.Debugf("error event dropped: %s", kind)
	}
}

func stopTicker(quit, done chan struct{}) {
	if quit == nil {
		return
	}
	select {
	case <-quit:
	default:
		close(quit)
	}
	if done != nil {
		<-done
	}
}

// tickLoop polls continuously and performs composite work only when the
// throttle grants a slot, decoupling composite rate from the poll rate.
func (s *Session) tickLoop(quit chan struct{}, done chan struct{}) {
	defer close(done)
	gate := newThrottle(s.cfg.FPS)
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	for {
		select {
		case <-quit:
			return
		case <-poll.C:
			s.tick(gate)
		}
	}
}

// Tick runs one throttle-gated composite pass. Exported for
// deterministic scheduling in tests; production uses the poll loop.
func (s *Session) Tick(now time.Time) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.tickOnce(nil, now)
}

func (s *Session) tick(gate *throttle) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.tickOnce(gate, s.now())
}

func (s *Session) tickOnce(gate *throttle, now time.Time) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	display, webcam := s.display, s.webcam
	comp, enc, collector := s.comp, s.enc, s.collector
	s.mu.Unlock()
	if display == nil || comp == nil || enc == nil {
		return
	}
	if gate != nil && !gate.ready(now) {
		return
	}

	frame, err := display.Frame()
	if err != nil || frame == nil {
		if gate != nil {
			gate.cancel()
		}
		if err != nil && !errors.Is(err, source.ErrNoFrame) {
			s.metrics.recordError(err)
		}
		return
	}

	var snap overlay.Snapshot
	if collector != nil {
		snap = collector.Snapshot()
	}
	var webcamFrame *image.RGBA
	if webcam != nil {
		webcamFrame, _ = webcam.Frame()
	}
	out := comp.Composite(frame, snap, webcamFrame, now)
	if out == nil {
		if gate != nil {
			gate.cancel()
		}
		return
	}
	queued := enc.Submit(out)
	s.metrics.recordFrame(queued, 0)
}
