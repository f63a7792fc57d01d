package source

import (
	"errors"
	"image"

	"github.com/kataras/golog"
)

var logger = golog.Child("[source]")

// ErrNoFrame means the source has not produced a decodable frame yet. The
// compositor skips the tick entirely when it sees this.
var ErrNoFrame = errors.New(`source: no frame available yet`)

// ErrUnavailable means the requested source does not exist on this platform
// or is busy. Recoverable: the session stays Idle.
var ErrUnavailable = errors.New(`source: unavailable`)

// ErrPermission means the platform refused access to the source.
// Recoverable: the session stays Idle.
var ErrPermission = errors.New(`source: permission denied`)

// FrameSource is an opaque live video handle (display or webcam). Frame
// returns the most recent frame; implementations may return ErrNoFrame
// before the first frame is decodable.
type FrameSource interface {
	Frame() (*image.RGBA, error)
	Bounds() image.Rectangle
	Close() error
}

// AudioSource delivers interleaved PCM samples in [-1, 1]. Read is
// non-blocking and returns however many samples are buffered.
type AudioSource interface {
	Read(dst []float32) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// Provider acquires the platform handles a capture session needs. The
// session treats every handle as opaque and owns its release.
type Provider interface {
	AcquireDisplay() (FrameSource, error)
	AcquireSystemAudio() (AudioSource, error)
	AcquireMic() (AudioSource, error)
	AcquireWebcam() (FrameSource, error)
}
