package encoder

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QueuePolicy decides what happens when the encoder falls behind the
// compositor.
type QueuePolicy string

const (
	// QueueDropOldest discards the oldest queued frame to make room; the
	// compositor never blocks.
	QueueDropOldest QueuePolicy = `drop-oldest`
	// QueueBlock makes Submit wait for free space.
	QueueBlock QueuePolicy = `block`
)

const (
	defaultQueueSize     = 8
	defaultChunkInterval = time.Second
)

// Options tune a session beyond the negotiated muxer.
type Options struct {
	QueueSize     int
	Policy        QueuePolicy
	ChunkInterval time.Duration
	// OnError receives mid-session faults; there is no synchronous
	// caller to return them to.
	OnError func(error)
}

// Session drives one muxer through the pause/resume-capable chunking
// lifecycle. Frames arrive through a bounded queue so backpressure is an
// explicit policy rather than hidden buffering.
type Session struct {
	muxer Muxer
	cfg   Config
	audio PCMReader
	opts  Options

	frames chan *image.RGBA
	quit   chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	pending  []byte
	chunks   [][]byte
	paused   bool
	stopped  bool
	encErr   error
	dropped  uint64
	encBytes uint64

	audioScratch []float32
}

// NewSession wraps an already-negotiated muxer.
func NewSession(muxer Muxer, cfg Config, audio PCMReader, opts Options) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Policy == "" {
		opts.Policy = QueueDropOldest
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}
	return &Session{
		muxer:  muxer,
		cfg:    cfg,
		audio:  audio,
		opts:   opts,
		frames: make(chan *image.RGBA, opts.QueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the chunk loop.
func (s *Session) Start() {
	go s.loop()
}

// Submit queues one composited frame. Returns false when the frame was
// dropped under the drop-oldest policy.
func (s *Session) Submit(img *image.RGBA) bool {
	if s == nil || img == nil {
		return false
	}
	if s.opts.Policy == QueueBlock {
		select {
		case s.frames <- img:
			return true
		case <-s.quit:
			return false
		}
	}
	for {
		select {
		case s.frames <- img:
			return true
		default:
		}
		select {
		case <-s.frames:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		default:
		}
	}
}

// Pause suspends chunk emission without finalizing the container.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume restarts chunk emission.
func (s *Session) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Session) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.ChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case img := <-s.frames:
			s.encodeFrame(img)
		case <-ticker.C:
			s.mu.Lock()
			paused := s.paused
			s.mu.Unlock()
			if paused {
				continue
			}
			s.drainAudio()
			s.sealChunk()
		case <-s.quit:
			return
		}
	}
}

func (s *Session) encodeFrame(img *image.RGBA) {
	payload, err := s.muxer.EncodeFrame(img)
	if err != nil {
		s.fault(fmt.Errorf("encoder: frame encode failed: %w", err))
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, payload...)
	s.mu.Unlock()
}

// maxDrainPasses caps how many full buffers one drain pulls, so a
// source that always has data cannot wedge the chunk loop.
const maxDrainPasses = 4

// drainAudio pulls everything the mix graph has buffered.
func (s *Session) drainAudio() {
	if s.audio == nil || !s.cfg.HasAudio {
		return
	}
	want := s.cfg.SampleRate * s.cfg.Channels
	if want <= 0 {
		return
	}
	if cap(s.audioScratch) < want {
		s.audioScratch = make([]float32, want)
	}
	for pass := 0; pass < maxDrainPasses; pass++ {
		n, err := s.audio.Read(s.audioScratch[:want])
		if err != nil || n == 0 {
			return
		}
		payload, err := s.muxer.EncodeAudio(s.audioScratch[:n])
		if err != nil {
			s.fault(fmt.Errorf("encoder: audio encode failed: %w", err))
			return
		}
		s.mu.Lock()
		s.pending = append(s.pending, payload...)
		s.mu.Unlock()
		if n < want {
			return
		}
	}
}

// sealChunk moves the pending payload into the chunk list, bounding the
// data lost to a crash to one interval.
func (s *Session) sealChunk() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return
	}
	chunk := make([]byte, len(s.pending))
	copy(chunk, s.pending)
	s.chunks = append(s.chunks, chunk)
	s.encBytes += uint64(len(chunk))
	s.pending = s.pending[:0]
}

func (s *Session) fault(err error) {
	s.mu.Lock()
	if s.encErr == nil {
		s.encErr = err
	}
	s.mu.Unlock()
	logger.Warnf("%v", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// Stop flushes the final chunk and concatenates everything into the
// artifact. Duration is the caller's elapsed recording time net of
// pauses. Idempotent calls after the first return an error.
func (s *Session) Stop(duration time.Duration) (*Artifact, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, fmt.Errorf("encoder: session already stopped")
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.quit)
	<-s.done

	// Drain whatever the compositor managed to queue before the stop.
	for {
		select {
		case img := <-s.frames:
			s.encodeFrame(img)
			continue
		default:
		}
		break
	}
	s.drainAudio()
	s.sealChunk()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encErr != nil {
		return nil, s.encErr
	}
	var payload []byte
	for _, chunk := range s.chunks {
		payload = append(payload, chunk...)
	}
	data, err := s.muxer.Finalize(payload, duration)
	if err != nil {
		return nil, fmt.Errorf("encoder: finalize failed: %w", err)
	}
	return &Artifact{
		ID:       uuid.NewString(),
		Data:     data,
		MimeType: s.muxer.MimeType(),
		Duration: duration,
	}, nil
}

// Abort tears the session down without producing an artifact. Chunks
// captured so far stay available through Salvage. Idempotent.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.quit)
	<-s.done
}

// Salvage hands out copies of the sealed chunks for callers that opt to
// keep partial data after a fault.
func (s *Session) Salvage() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.chunks))
	for i, chunk := range s.chunks {
		out[i] = make([]byte, len(chunk))
		copy(out[i], chunk)
	}
	return out
}

// Counters reports sealed chunk count, encoded bytes, and dropped frames.
func (s *Session) Counters() (chunks uint64, bytes uint64, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.chunks)), s.encBytes, s.dropped
}

// Err returns the first mid-session fault, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encErr
}
