// Package encoder negotiates a container from an ordered preference
// list, drives chunked encoding of composited frames plus mixed audio,
// and produces the final artifact.
package encoder

import (
	"image"
	"time"
)

// Config describes the desired output properties for one session.
type Config struct {
	Width        int
	Height       int
	FPS          int
	VideoBitrate int // bits per second
	AudioBitrate int // bits per second
	HasAudio     bool
	SampleRate   int
	Channels     int
}

// Capability describes a container/codec combination a factory can open.
type Capability struct {
	Name        string `json:"name"`
	Container   string `json:"container"`
	MimeType    string `json:"mimeType"`
	Audio       bool   `json:"audio"`
	Baseline    bool   `json:"baseline"`
	Available   bool   `json:"available"`
	Description string `json:"description,omitempty"`
}

// Muxer encodes frames and PCM into container payload units and wraps
// the accumulated payload into a finished file on Finalize.
type Muxer interface {
	Name() string
	MimeType() string
	EncodeFrame(img *image.RGBA) ([]byte, error)
	EncodeAudio(pcm []float32) ([]byte, error)
	Finalize(payload []byte, duration time.Duration) ([]byte, error)
}

// Factory can open Muxer instances for a specific capability.
type Factory interface {
	Capability() Capability
	Available() bool
	Open(cfg Config) (Muxer, error)
}

// PCMReader is the slice of the mix graph the session pulls audio from.
type PCMReader interface {
	Read(dst []float32) (int, error)
}

// Artifact is the final encoded media object, produced exactly once per
// session and immutable thereafter.
type Artifact struct {
	ID       string
	Data     []byte
	MimeType string
	Duration time.Duration
}

// qualityForBitrate maps a target video bitrate onto a JPEG quality
// setting for the baseline path.
func qualityForBitrate(cfg Config) int {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 || cfg.VideoBitrate <= 0 {
		return 70
	}
	bpp := float64(cfg.VideoBitrate) / float64(cfg.Width*cfg.Height*cfg.FPS)
	quality := int(40 + bpp*12)
	if quality < 40 {
		quality = 40
	}
	if quality > 90 {
		quality = 90
	}
	return quality
}
