package region

import "testing"

func TestSelectorInitialFullFrame(t *testing.T) {
	s := NewSelector(1920, 1080, 960, 540)
	r := s.Region()
	if r.X != 0 || r.Y != 0 || r.Width != 1920 || r.Height != 1080 {
		t.Fatalf("expected full-frame region, got %+v", r)
	}
	picked := s.Confirm()
	if picked == nil {
		t.Fatalf("initial region is not the full-frame bypass; expected a rectangle")
	}
}

func TestSelectorUseFullFrameConfirmsNil(t *testing.T) {
	s := NewSelector(1920, 1080, 960, 540)
	s.SetRegion(Region{X: 100, Y: 100, Width: 400, Height: 300})
	s.UseFullFrame()
	if picked := s.Confirm(); picked != nil {
		t.Fatalf("expected nil after UseFullFrame, got %+v", *picked)
	}
}

func TestSelectorPreviewMappingRoundTrip(t *testing.T) {
	// 1920x1080 into a 1000x540 viewport: scale 0.5, 20px letterbox on X.
	s := NewSelector(1920, 1080, 1000, 540)
	px, py := s.SourceToPreview(0, 0)
	if px != 20 || py != 0 {
		t.Fatalf("expected letterbox offset (20, 0), got (%v, %v)", px, py)
	}
	sx, sy := s.PreviewToSource(px+960, py+540)
	if sx != 1920 || sy != 1080 {
		t.Fatalf("round trip drifted: got (%v, %v)", sx, sy)
	}
}

func TestSelectorMoveClampsToBounds(t *testing.T) {
	s := NewSelector(1000, 1000, 1000, 1000)
	s.SetRegion(Region{X: 100, Y: 100, Width: 200, Height: 200})
	s.BeginDrag(200, 200) // inside the rectangle
	s.Drag(-5000, -5000)
	s.EndDrag()
	r := s.Region()
	if r.X != 0 || r.Y != 0 {
		t.Fatalf("expected region pinned at origin, got %+v", r)
	}
	if r.Width != 200 || r.Height != 200 {
		t.Fatalf("move must not resize: got %+v", r)
	}
}

func TestSelectorLeftEdgeResizeClampsAtMinSize(t *testing.T) {
	s := NewSelector(1000, 1000, 500, 500) // scale 0.5
	s.SetRegion(Region{X: 100, Y: 100, Width: 200, Height: 200})
	// Grab the left edge (preview x = 100*0.5 = 50) and drag far past the
	// right edge. Width must stop at MinSize with the right edge fixed.
	s.BeginDrag(50, 100)
	s.Drag(50+500, 100)
	s.EndDrag()
	r := s.Region()
	if r.Width != MinSize {
		t.Fatalf("expected width %d, got %d", MinSize, r.Width)
	}
	if r.X+r.Width != 300 {
		t.Fatalf("right edge moved: region %+v", r)
	}
}

func TestSelectorLeftEdgeDragPastOriginClamps(t *testing.T) {
	s := NewSelector(1000, 1000, 1000, 1000)
	// Full-frame region: the left edge already sits at x=0, so pulling
	// it further left must change nothing.
	s.BeginDrag(0, 500)
	s.Drag(-50, 500)
	s.EndDrag()
	r := s.Region()
	if r.X != 0 {
		t.Fatalf("left edge must stay clamped at 0, got %+v", r)
	}
	if r.Width != 1000 {
		t.Fatalf("width must not change when the edge is already at the bound, got %+v", r)
	}

	// From x=20 the same pull gains only the 20px that exist before the
	// clamp engages.
	s.SetRegion(Region{X: 20, Y: 0, Width: 200, Height: 200})
	s.BeginDrag(20, 100)
	s.Drag(-30, 100)
	s.EndDrag()
	r = s.Region()
	if r.X != 0 {
		t.Fatalf("expected left edge clamped at 0, got %+v", r)
	}
	if r.Width != 220 {
		t.Fatalf("expected width grown by the clamped 20px only, got %+v", r)
	}
}

func TestSelectorRightEdgeResizeClampsAtSource(t *testing.T) {
	s := NewSelector(1000, 1000, 1000, 1000)
	s.SetRegion(Region{X: 100, Y: 100, Width: 200, Height: 200})
	s.BeginDrag(300, 200)
	s.Drag(5000, 200)
	s.EndDrag()
	r := s.Region()
	if r.X+r.Width != 1000 {
		t.Fatalf("expected right edge clamped to source, got %+v", r)
	}
	if r.X != 100 {
		t.Fatalf("left edge moved: region %+v", r)
	}
}

func TestSelectorDragOutsideRegionIgnored(t *testing.T) {
	s := NewSelector(1000, 1000, 1000, 1000)
	s.SetRegion(Region{X: 400, Y: 400, Width: 200, Height: 200})
	s.BeginDrag(10, 10)
	s.Drag(100, 100)
	s.EndDrag()
	if r := s.Region(); r.X != 400 || r.Y != 400 {
		t.Fatalf("drag outside the rectangle must be ignored, got %+v", r)
	}
}

func TestSelectorSetRegionClamps(t *testing.T) {
	s := NewSelector(800, 600, 800, 600)
	s.SetRegion(Region{X: 790, Y: 590, Width: 10, Height: 10})
	r := s.Region()
	if !r.Valid(800, 600) {
		t.Fatalf("SetRegion produced an invalid region: %+v", r)
	}
	if r.Width != MinSize || r.Height != MinSize {
		t.Fatalf("expected region grown to MinSize, got %+v", r)
	}
}

func TestRegionValid(t *testing.T) {
	if (Region{X: 0, Y: 0, Width: MinSize - 1, Height: MinSize}).Valid(100, 100) {
		t.Fatalf("undersized region reported valid")
	}
	if (Region{X: 90, Y: 0, Width: 50, Height: 50}).Valid(100, 100) {
		t.Fatalf("out-of-bounds region reported valid")
	}
	if !(Region{X: 10, Y: 10, Width: 50, Height: 50}).Valid(100, 100) {
		t.Fatalf("valid region rejected")
	}
}
