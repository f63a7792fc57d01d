package recorder

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"Reel/modules"
	"Reel/service/recorder/compositor"
	"Reel/service/source"
)

var testWebcam = compositor.WebcamConfig{
	Anchor: compositor.AnchorBottomRight,
	Size:   64,
	Shape:  compositor.ShapeSquare,
}

// fakeProvider hands out synthetic sources so lifecycle tests never touch
// real capture devices.
type fakeProvider struct {
	display *source.PatternSource
	sys     *source.ToneSource
	mic     *source.ToneSource
	webcam  *source.PatternSource

	micErr error
}

func (p *fakeProvider) AcquireDisplay() (source.FrameSource, error) {
	if p.display == nil {
		return nil, source.ErrUnavailable
	}
	return p.display, nil
}

func (p *fakeProvider) AcquireSystemAudio() (source.AudioSource, error) {
	if p.sys == nil {
		return nil, source.ErrUnavailable
	}
	return p.sys, nil
}

func (p *fakeProvider) AcquireMic() (source.AudioSource, error) {
	if p.micErr != nil {
		return nil, p.micErr
	}
	if p.mic == nil {
		return nil, source.ErrUnavailable
	}
	return p.mic, nil
}

func (p *fakeProvider) AcquireWebcam() (source.FrameSource, error) {
	if p.webcam == nil {
		return nil, source.ErrUnavailable
	}
	return p.webcam, nil
}

// testClock is a hand-advanced wall clock safe to share with the session.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSession(p *fakeProvider, clock *testClock) *Session {
	// A huge poll interval keeps the background loop dormant so tests
	// drive ticks deterministically through Tick.
	return NewSession(p, WithClock(clock.Now), WithPollInterval(time.Hour))
}

func videoOnlyConfig() Config {
	return Config{OutputWidth: 320, OutputHeight: 240, FPS: 30}
}

func TestSessionLifecycle(t *testing.T) {
	provider := &fakeProvider{
		display: source.NewPatternSource(640, 480, color.RGBA{R: 200}, 0),
		mic:     source.NewToneSource(440, 0.5),
	}
	clock := newTestClock()
	s := newTestSession(provider, clock)

	cfg := videoOnlyConfig()
	cfg.IncludeMic = true
	if err := s.RequestSource(cfg); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected Idle after acquisition, got %s", s.State())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != StateRecording {
		t.Fatalf("expected Recording, got %s", s.State())
	}

	for i := 0; i < 5; i++ {
		clock.Advance(33 * time.Millisecond)
		s.Tick(clock.Now())
	}

	clock.Advance(2 * time.Second)
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	pausedAt := s.Elapsed()
	clock.Advance(3 * time.Second)
	if s.Elapsed() != pausedAt {
		t.Fatalf("elapsed must freeze while paused: %v -> %v", pausedAt, s.Elapsed())
	}
	s.Tick(clock.Now())
	frames := s.Status().Metrics.FramesComposited
	s.Tick(clock.Now())
	if s.Status().Metrics.FramesComposited != frames {
		t.Fatalf("ticks must be inert while paused")
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clock.Advance(1 * time.Second)

	artifact, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// 165ms of ticking + 2s + 1s recording, 3s of pause excluded.
	want := 165*time.Millisecond + 3*time.Second
	if artifact.Duration != want {
		t.Fatalf("expected duration %v, got %v", want, artifact.Duration)
	}
	if artifact.MimeType != `video/x-msvideo` {
		t.Fatalf("unexpected mime %q", artifact.MimeType)
	}
	if len(artifact.Data) == 0 || artifact.ID == "" {
		t.Fatalf("artifact incomplete: id=%q size=%d", artifact.ID, len(artifact.Data))
	}

	if !provider.display.Closed() {
		t.Fatalf("display not released after Stop")
	}
	if !provider.mic.Closed() {
		t.Fatalf("mic not released after Stop")
	}

	if got, err := s.Artifact(); err != nil || got.ID != artifact.ID {
		t.Fatalf("Artifact after Stop: %v %v", got, err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected Idle after Reset, got %s", s.State())
	}
	if _, err := s.Artifact(); err == nil {
		t.Fatalf("artifact must be discarded by Reset")
	}
}

func TestSessionStateGuards(t *testing.T) {
	provider := &fakeProvider{display: source.NewPatternSource(640, 480, color.RGBA{R: 200}, 0)}
	s := newTestSession(provider, newTestClock())

	if err := s.Start(); err != ErrNoSource {
		t.Fatalf("Start without sources: %v", err)
	}
	if err := s.Pause(); err == nil {
		t.Fatalf("Pause in Idle must fail")
	}
	if err := s.Resume(); err == nil {
		t.Fatalf("Resume in Idle must fail")
	}
	if _, err := s.Stop(); err == nil {
		t.Fatalf("Stop in Idle must fail")
	}
	if err := s.Reset(); err == nil {
		t.Fatalf("Reset in Idle must fail")
	}
	if _, err := s.Artifact(); err != ErrNoArtifact {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}

	if err := s.RequestSource(videoOnlyConfig()); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("double Start must fail")
	}
	if err := s.RequestSource(videoOnlyConfig()); err == nil {
		t.Fatalf("RequestSource while Recording must fail")
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSessionAcquireRollback(t *testing.T) {
	display := source.NewPatternSource(640, 480, color.RGBA{G: 200}, 0)
	provider := &fakeProvider{
		display: display,
		micErr:  fmt.Errorf("capture device busy: %w", source.ErrPermission),
	}
	s := newTestSession(provider, newTestClock())

	cfg := videoOnlyConfig()
	cfg.IncludeMic = true
	err := s.RequestSource(cfg)
	if err == nil {
		t.Fatalf("expected acquisition failure")
	}
	if !strings.HasPrefix(err.Error(), modules.ErrKindPermissionDenied) {
		t.Fatalf("expected %s classification, got %v", modules.ErrKindPermissionDenied, err)
	}
	if !display.Closed() {
		t.Fatalf("display must be rolled back when a later source fails")
	}
	if s.State() != StateIdle {
		t.Fatalf("expected Idle after rollback, got %s", s.State())
	}
}

func TestSessionSkipsWarmupFrames(t *testing.T) {
	provider := &fakeProvider{display: source.NewPatternSource(640, 480, color.RGBA{B: 200}, 2)}
	clock := newTestClock()
	s := newTestSession(provider, clock)

	if err := s.RequestSource(videoOnlyConfig()); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 5; i++ {
		clock.Advance(33 * time.Millisecond)
		s.Tick(clock.Now())
	}
	frames := s.Status().Metrics.FramesComposited
	if frames != 3 {
		t.Fatalf("expected 3 composited frames past 2 warmup ticks, got %d", frames)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSessionStatusShape(t *testing.T) {
	provider := &fakeProvider{
		display: source.NewPatternSource(640, 480, color.RGBA{R: 50}, 0),
		mic:     source.NewToneSource(440, 0.5),
	}
	clock := newTestClock()
	s := newTestSession(provider, clock)

	status := s.Status()
	if status.State != `Idle` || status.ElapsedSeconds != 0 {
		t.Fatalf("unexpected idle status %+v", status)
	}

	cfg := videoOnlyConfig()
	cfg.IncludeMic = true
	if err := s.RequestSource(cfg); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(time.Second)
	s.Tick(clock.Now())

	status = s.Status()
	if status.State != `Recording` {
		t.Fatalf("expected Recording, got %s", status.State)
	}
	if status.ElapsedSeconds != 1 {
		t.Fatalf("expected 1s elapsed, got %v", status.ElapsedSeconds)
	}
	if status.Metrics == nil || status.Metrics.FramesComposited != 1 {
		t.Fatalf("unexpected metrics %+v", status.Metrics)
	}

	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if level := s.Status().MicLevel; level != 0 {
		t.Fatalf("mic level must read 0 once the graph is released, got %v", level)
	}
}

func TestSessionWebcamAcquired(t *testing.T) {
	provider := &fakeProvider{
		display: source.NewPatternSource(640, 480, color.RGBA{R: 50}, 0),
		webcam:  source.NewPatternSource(320, 240, color.RGBA{G: 255}, 0),
	}
	clock := newTestClock()
	s := newTestSession(provider, clock)

	cfg := videoOnlyConfig()
	cfg.Webcam = &testWebcam
	if err := s.RequestSource(cfg); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(time.Second)
	s.Tick(clock.Now())
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !provider.webcam.Closed() {
		t.Fatalf("webcam not released after Stop")
	}
}

func TestSessionReacquireReleasesPriorSources(t *testing.T) {
	first := source.NewPatternSource(640, 480, color.RGBA{R: 1}, 0)
	firstMic := source.NewToneSource(440, 0.5)
	provider := &fakeProvider{display: first, mic: firstMic}
	s := newTestSession(provider, newTestClock())

	cfg := videoOnlyConfig()
	cfg.IncludeMic = true
	if err := s.RequestSource(cfg); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}

	second := source.NewPatternSource(640, 480, color.RGBA{R: 2}, 0)
	provider.display = second
	provider.mic = source.NewToneSource(440, 0.5)
	if err := s.RequestSource(cfg); err != nil {
		t.Fatalf("second RequestSource: %v", err)
	}

	if !first.Closed() {
		t.Fatalf("first display handle leaked after re-acquisition")
	}
	if !firstMic.Closed() {
		t.Fatalf("first mic handle leaked after re-acquisition")
	}
	if second.Closed() {
		t.Fatalf("fresh display must stay open")
	}

	// The session is still fully usable with the new handles.
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !second.Closed() {
		t.Fatalf("second display not released after Stop")
	}
}

func TestSessionElapsedRetainedAfterFault(t *testing.T) {
	provider := &fakeProvider{display: source.NewPatternSource(640, 480, color.RGBA{R: 9}, 0)}
	clock := newTestClock()
	s := newTestSession(provider, clock)

	if err := s.RequestSource(videoOnlyConfig()); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(2 * time.Second)
	s.Tick(clock.Now())

	s.abortOnFault()
	if s.State() != StateStopped {
		t.Fatalf("expected Stopped after fault, got %s", s.State())
	}
	if !s.Status().HasError {
		t.Fatalf("expected error flag after fault")
	}
	if got := s.Elapsed(); got != 2*time.Second {
		t.Fatalf("elapsed must survive the abort, got %v", got)
	}
	clock.Advance(time.Second)
	if got := s.Elapsed(); got != 2*time.Second {
		t.Fatalf("elapsed must stay frozen after the abort, got %v", got)
	}
	if !provider.display.Closed() {
		t.Fatalf("display not released after fault abort")
	}
}

func TestSessionResetClearsSalvage(t *testing.T) {
	provider := &fakeProvider{display: source.NewPatternSource(640, 480, color.RGBA{R: 7}, 0)}
	clock := newTestClock()
	s := newTestSession(provider, clock)

	if err := s.RequestSource(videoOnlyConfig()); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(time.Second)
	s.Tick(clock.Now())
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(s.Salvage()) == 0 {
		t.Fatalf("expected sealed chunks after Stop")
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := s.Salvage(); len(got) != 0 {
		t.Fatalf("salvage must not outlive Reset, got %d chunks", len(got))
	}
}

func TestSessionStopIsFinalForRelease(t *testing.T) {
	provider := &fakeProvider{display: source.NewPatternSource(640, 480, color.RGBA{R: 50}, 0)}
	s := newTestSession(provider, newTestClock())
	if err := s.RequestSource(videoOnlyConfig()); err != nil {
		t.Fatalf("RequestSource: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Reset releases again; the guard makes the second pass a no-op.
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
}
