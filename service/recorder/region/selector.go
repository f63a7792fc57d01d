// Package region implements the interactive crop-region picker: a
// letterboxed preview of the source with a draggable, resizable
// rectangle expressed in source-pixel coordinates.
package region

import "math"

// MinSize is the floor for both region dimensions, in source pixels.
const MinSize = 40

// edgeThreshold is the resize hit zone around each edge, in preview pixels.
const edgeThreshold = 12

// Region is a crop rectangle in source-pixel space. It is always fully
// inside the source bounds with both dimensions >= MinSize.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the region satisfies the crop invariants against
// the given source dimensions.
func (r Region) Valid(sourceW, sourceH int) bool {
	return r.X >= 0 && r.Y >= 0 &&
		r.Width >= MinSize && r.Height >= MinSize &&
		r.X+r.Width <= sourceW && r.Y+r.Height <= sourceH
}

type dragMode int

const (
	dragNone dragMode = iota
	dragMove
	dragLeft
	dragRight
	dragTop
	dragBottom
)

// Selector maintains the preview<->source mapping and the drag state
// machine. All public drag coordinates are preview pixels.
type Selector struct {
	sourceW, sourceH int
	viewW, viewH     int
	scale            float64
	offX, offY       float64

	region Region
	full   bool

	mode         dragMode
	lastX, lastY float64
}

// NewSelector starts with the full source as the region.
func NewSelector(sourceW, sourceH, viewW, viewH int) *Selector {
	s := &Selector{sourceW: sourceW, sourceH: sourceH}
	s.region = Region{X: 0, Y: 0, Width: sourceW, Height: sourceH}
	s.SetViewport(viewW, viewH)
	return s
}

// SetViewport recomputes the uniform fit scale and letterbox offsets.
func (s *Selector) SetViewport(viewW, viewH int) {
	s.viewW, s.viewH = viewW, viewH
	if s.sourceW <= 0 || s.sourceH <= 0 || viewW <= 0 || viewH <= 0 {
		s.scale = 1
		s.offX, s.offY = 0, 0
		return
	}
	s.scale = math.Min(float64(viewW)/float64(s.sourceW), float64(viewH)/float64(s.sourceH))
	s.offX = (float64(viewW) - float64(s.sourceW)*s.scale) / 2
	s.offY = (float64(viewH) - float64(s.sourceH)*s.scale) / 2
}

// SourceToPreview maps source-pixel coordinates into the letterboxed preview.
func (s *Selector) SourceToPreview(x, y float64) (float64, float64) {
	return x*s.scale + s.offX, y*s.scale + s.offY
}

// PreviewToSource maps preview coordinates back into source-pixel space.
func (s *Selector) PreviewToSource(px, py float64) (float64, float64) {
	if s.scale == 0 {
		return 0, 0
	}
	return (px - s.offX) / s.scale, (py - s.offY) / s.scale
}

// BeginDrag classifies the pointer-down position: an edge hit zone starts
// a single-edge resize, a hit inside the rectangle starts a translate,
// anything else is ignored.
func (s *Selector) BeginDrag(px, py float64) {
	s.mode = s.classify(px, py)
	s.lastX, s.lastY = px, py
}

func (s *Selector) classify(px, py float64) dragMode {
	left, top := s.SourceToPreview(float64(s.region.X), float64(s.region.Y))
	right, bottom := s.SourceToPreview(float64(s.region.X+s.region.Width), float64(s.region.Y+s.region.Height))
	withinY := py >= top-edgeThreshold && py <= bottom+edgeThreshold
	withinX := px >= left-edgeThreshold && px <= right+edgeThreshold
	switch {
	case math.Abs(px-left) <= edgeThreshold && withinY:
		return dragLeft
	case math.Abs(px-right) <= edgeThreshold && withinY:
		return dragRight
	case math.Abs(py-top) <= edgeThreshold && withinX:
		return dragTop
	case math.Abs(py-bottom) <= edgeThreshold && withinX:
		return dragBottom
	case px > left && px < right && py > top && py < bottom:
		return dragMove
	}
	return dragNone
}

// Drag applies the pointer movement since the last event to the active
// mode, clamping so the region never leaves the source bounds and never
// shrinks below MinSize.
func (s *Selector) Drag(px, py float64) {
	if s.mode == dragNone {
		return
	}
	dx := (px - s.lastX) / s.scale
	dy := (py - s.lastY) / s.scale
	s.lastX, s.lastY = px, py

	r := s.region
	switch s.mode {
	case dragMove:
		r.X = clampInt(r.X+roundInt(dx), 0, s.sourceW-r.Width)
		r.Y = clampInt(r.Y+roundInt(dy), 0, s.sourceH-r.Height)
	case dragLeft:
		right := r.X + r.Width
		newX := clampInt(r.X+roundInt(dx), 0, right-MinSize)
		r.Width = right - newX
		r.X = newX
	case dragRight:
		newRight := clampInt(r.X+r.Width+roundInt(dx), r.X+MinSize, s.sourceW)
		r.Width = newRight - r.X
	case dragTop:
		bottom := r.Y + r.Height
		newY := clampInt(r.Y+roundInt(dy), 0, bottom-MinSize)
		r.Height = bottom - newY
		r.Y = newY
	case dragBottom:
		newBottom := clampInt(r.Y+r.Height+roundInt(dy), r.Y+MinSize, s.sourceH)
		r.Height = newBottom - r.Y
	}
	s.region = r
	s.full = false
}

// EndDrag finishes the active gesture.
func (s *Selector) EndDrag() {
	s.mode = dragNone
}

// Region returns the current rectangle.
func (s *Selector) Region() Region {
	return s.region
}

// SetRegion replaces the rectangle, clamping it into the source bounds.
func (s *Selector) SetRegion(r Region) {
	if r.Width < MinSize {
		r.Width = MinSize
	}
	if r.Height < MinSize {
		r.Height = MinSize
	}
	if r.Width > s.sourceW {
		r.Width = s.sourceW
	}
	if r.Height > s.sourceH {
		r.Height = s.sourceH
	}
	r.X = clampInt(r.X, 0, s.sourceW-r.Width)
	r.Y = clampInt(r.Y, 0, s.sourceH-r.Height)
	s.region = r
	s.full = false
}

// UseFullFrame bypasses cropping: Confirm will report no region.
func (s *Selector) UseFullFrame() {
	s.region = Region{X: 0, Y: 0, Width: s.sourceW, Height: s.sourceH}
	s.full = true
}

// Confirm finalizes the pick. A nil result means "no crop" downstream.
func (s *Selector) Confirm() *Region {
	if s.full {
		return nil
	}
	r := s.region
	return &r
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
