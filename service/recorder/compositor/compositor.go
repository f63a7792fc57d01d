// Package compositor assembles one output frame per tick from the source
// stream, the optional crop region, the overlay snapshot, and the
// optional webcam picture-in-picture.
package compositor

import (
	"image"
	"time"

	"Reel/service/recorder/overlay"
	"Reel/service/recorder/region"

	"github.com/kataras/golog"
	xdraw "golang.org/x/image/draw"
)

var logger = golog.Child("[compositor]")

const (
	// click rings expand at this many output pixels per second.
	clickRingSpeed = 120.0
	// fixed cursor-highlight ring radius at output scale.
	cursorRingRadius = 24.0
	ringStroke       = 3.0
	// PiP corner padding.
	webcamPadding = 16
)

// Anchor places the webcam inset in one of the four output corners.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
)

// Shape selects the webcam clip mask.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeSquare
)

// WebcamConfig describes the picture-in-picture inset. Size is the inset
// edge length in output pixels; it is clamped to half the shorter output
// dimension.
type WebcamConfig struct {
	Anchor Anchor
	Size   int
	Shape  Shape
	Blur   bool
}

// Config is fixed for the lifetime of one compositor.
type Config struct {
	OutputWidth  int
	OutputHeight int
	Region       *region.Region
	Webcam       *WebcamConfig
}

// Compositor renders output frames. It is driven from a single tick
// goroutine and keeps no cross-tick pixel state beyond its config.
type Compositor struct {
	cfg    Config
	webcam *WebcamConfig
}

func New(cfg Config) *Compositor {
	c := &Compositor{cfg: cfg}
	if cfg.Webcam != nil {
		wc := *cfg.Webcam
		ceiling := cfg.OutputWidth
		if cfg.OutputHeight < ceiling {
			ceiling = cfg.OutputHeight
		}
		ceiling /= 2
		if wc.Size > ceiling {
			logger.Debugf("webcam inset %dpx clamped to %dpx", wc.Size, ceiling)
			wc.Size = ceiling
		}
		if wc.Size > 0 {
			c.webcam = &wc
		}
	}
	return c
}

// Composite produces one output frame, or nil when the source frame is
// not yet decodable (the tick is skipped entirely).
func (c *Compositor) Composite(src *image.RGBA, snap overlay.Snapshot, webcamFrame *image.RGBA, now time.Time) *image.RGBA {
	if src == nil {
		return nil
	}
	sample := c.sampleRect(src)
	out := image.NewRGBA(image.Rect(0, 0, c.cfg.OutputWidth, c.cfg.OutputHeight))
	xdraw.ApproxBiLinear.Scale(out, out.Rect, src, sample, xdraw.Src, nil)

	if snap.Toggles.ClickEffect {
		c.drawClickRings(out, sample, src.Rect, snap.Clicks, now)
	}
	if snap.Toggles.CursorHighlight && snap.PointerKnown {
		c.drawCursorRing(out, sample, src.Rect, snap.PointerX, snap.PointerY)
	}
	if snap.Toggles.KeyBadge {
		if keys := snap.OrderedKeys(); len(keys) > 0 {
			drawKeyBadge(out, keys)
		}
	}
	if c.webcam != nil && webcamFrame != nil {
		c.drawWebcam(out, webcamFrame)
	}
	return out
}

// sampleRect picks the crop region when it is present and non-degenerate,
// otherwise the full source frame.
func (c *Compositor) sampleRect(src *image.RGBA) image.Rectangle {
	r := c.cfg.Region
	if r == nil {
		return src.Rect
	}
	rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(src.Rect.Min)
	rect = rect.Intersect(src.Rect)
	if rect.Dx() < region.MinSize || rect.Dy() < region.MinSize {
		return src.Rect
	}
	return rect
}

// mapToOutput translates a normalized source position into output pixels
// through the active sample rectangle. ok is false when the position
// falls outside the crop.
func (c *Compositor) mapToOutput(sample, srcBounds image.Rectangle, nx, ny float64) (float64, float64, bool) {
	sx := float64(srcBounds.Min.X) + nx*float64(srcBounds.Dx())
	sy := float64(srcBounds.Min.Y) + ny*float64(srcBounds.Dy())
	if sx < float64(sample.Min.X) || sx > float64(sample.Max.X) ||
		sy < float64(sample.Min.Y) || sy > float64(sample.Max.Y) {
		return 0, 0, false
	}
	ox := (sx - float64(sample.Min.X)) * float64(c.cfg.OutputWidth) / float64(sample.Dx())
	oy := (sy - float64(sample.Min.Y)) * float64(c.cfg.OutputHeight) / float64(sample.Dy())
	return ox, oy, true
}

func (c *Compositor) drawClickRings(out *image.RGBA, sample, srcBounds image.Rectangle, clicks []overlay.Click, now time.Time) {
	for _, click := range clicks {
		age := now.Sub(click.At)
		if age < 0 || age >= overlay.ClickTTL {
			continue
		}
		ox, oy, ok := c.mapToOutput(sample, srcBounds, click.X, click.Y)
		if !ok {
			continue
		}
		radius := clickRingSpeed * age.Seconds()
		alpha := 1 - float64(age)/float64(overlay.ClickTTL)
		drawRing(out, ox, oy, radius, ringStroke, clickRingColor, alpha)
	}
}

func (c *Compositor) drawCursorRing(out *image.RGBA, sample, srcBounds image.Rectangle, nx, ny float64) {
	ox, oy, ok := c.mapToOutput(sample, srcBounds, nx, ny)
	if !ok {
		return
	}
	drawRing(out, ox, oy, cursorRingRadius, ringStroke, cursorRingColor, 0.9)
}
