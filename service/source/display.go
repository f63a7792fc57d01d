package source

import (
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
)

// DisplaySource captures one physical display via the platform screenshot
// API. Every Frame call grabs a fresh shot of the display bounds.
type DisplaySource struct {
	mu     sync.Mutex
	index  int
	bounds image.Rectangle
	closed bool
}

// DisplayBounds reports the pixel bounds of a display without opening a
// capture handle.
func DisplayBounds(index int) (image.Rectangle, error) {
	total := screenshot.NumActiveDisplays()
	if index < 0 || index >= total {
		return image.Rectangle{}, fmt.Errorf("source: invalid display index %d (max %d): %w", index, total-1, ErrUnavailable)
	}
	return screenshot.GetDisplayBounds(index), nil
}

// OpenDisplay validates the display index and returns a live handle.
func OpenDisplay(index int) (*DisplaySource, error) {
	total := screenshot.NumActiveDisplays()
	if total <= 0 {
		return nil, fmt.Errorf("source: no active displays detected: %w", ErrUnavailable)
	}
	if index < 0 || index >= total {
		return nil, fmt.Errorf("source: invalid display index %d (max %d): %w", index, total-1, ErrUnavailable)
	}
	bounds := screenshot.GetDisplayBounds(index)
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("source: display %d has zero bounds: %w", index, ErrUnavailable)
	}
	return &DisplaySource{index: index, bounds: bounds}, nil
}

func (d *DisplaySource) Frame() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrUnavailable
	}
	img, err := screenshot.CaptureRect(d.bounds)
	if err != nil {
		return nil, fmt.Errorf("source: display capture failed: %w", err)
	}
	if img == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

func (d *DisplaySource) Bounds() image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bounds
}

// Close is idempotent.
func (d *DisplaySource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
