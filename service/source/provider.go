package source

import "fmt"

// SystemProvider hands out real platform capture handles. Webcam handles
// are opaque to this module; embedding applications register one through
// SetWebcam, otherwise webcam acquisition reports ErrUnavailable.
type SystemProvider struct {
	DisplayIndex int
	webcam       FrameSource
}

func NewSystemProvider(displayIndex int) *SystemProvider {
	return &SystemProvider{DisplayIndex: displayIndex}
}

// SetWebcam registers an externally owned webcam handle.
func (p *SystemProvider) SetWebcam(src FrameSource) {
	p.webcam = src
}

func (p *SystemProvider) AcquireDisplay() (FrameSource, error) {
	src, err := OpenDisplay(p.DisplayIndex)
	if err != nil {
		return nil, err
	}
	logger.Infof("display %d acquired %dx%d", p.DisplayIndex, src.Bounds().Dx(), src.Bounds().Dy())
	return src, nil
}

func (p *SystemProvider) AcquireSystemAudio() (AudioSource, error) {
	return OpenSystemLoopback()
}

func (p *SystemProvider) AcquireMic() (AudioSource, error) {
	return OpenMic()
}

func (p *SystemProvider) AcquireWebcam() (FrameSource, error) {
	if p.webcam == nil {
		return nil, fmt.Errorf("source: no webcam handle registered: %w", ErrUnavailable)
	}
	return p.webcam, nil
}
