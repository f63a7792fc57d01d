package record

import (
	"net/http"

	"Reel/modules"
	"Reel/service/recorder/region"
	"Reel/service/source"

	"github.com/gin-gonic/gin"
)

// RegionOpen creates a selector for the configured display sized against
// the caller's preview viewport.
func (s *Service) RegionOpen(ctx *gin.Context) {
	var req struct {
		ViewWidth  int `json:"viewWidth"`
		ViewHeight int `json:"viewHeight"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, err.Error())
		return
	}
	bounds, err := source.DisplayBounds(s.cfg.Record.DisplayIndex)
	if err != nil {
		fail(ctx, http.StatusConflict, modules.ErrKindSourceUnavailable, err.Error())
		return
	}
	s.mu.Lock()
	s.selector = region.NewSelector(bounds.Dx(), bounds.Dy(), req.ViewWidth, req.ViewHeight)
	sel := s.selector
	s.mu.Unlock()
	ok(ctx, gin.H{
		`sourceWidth`:  bounds.Dx(),
		`sourceHeight`: bounds.Dy(),
		`region`:       sel.Region(),
	})
}

// RegionDrag advances the drag state machine with one pointer event.
// Phases mirror the pointer lifecycle: down, move, up.
func (s *Service) RegionDrag(ctx *gin.Context) {
	var req struct {
		Phase string  `json:"phase"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, err.Error())
		return
	}
	sel := s.currentSelector()
	if sel == nil {
		fail(ctx, http.StatusConflict, modules.ErrKindSourceUnavailable, `no selector open`)
		return
	}
	switch req.Phase {
	case `down`:
		sel.BeginDrag(req.X, req.Y)
	case `move`:
		sel.Drag(req.X, req.Y)
	case `up`:
		sel.EndDrag()
	default:
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, `unknown drag phase `+req.Phase)
		return
	}
	ok(ctx, gin.H{`region`: sel.Region()})
}

// RegionSet replaces the rectangle wholesale, e.g. from typed-in values.
func (s *Service) RegionSet(ctx *gin.Context) {
	var req region.Region
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, modules.ErrKindSourceUnavailable, err.Error())
		return
	}
	sel := s.currentSelector()
	if sel == nil {
		fail(ctx, http.StatusConflict, modules.ErrKindSourceUnavailable, `no selector open`)
		return
	}
	sel.SetRegion(req)
	ok(ctx, gin.H{`region`: sel.Region()})
}

// RegionFullFrame switches the pick to "no crop".
func (s *Service) RegionFullFrame(ctx *gin.Context) {
	sel := s.currentSelector()
	if sel == nil {
		fail(ctx, http.StatusConflict, modules.ErrKindSourceUnavailable, `no selector open`)
		return
	}
	sel.UseFullFrame()
	ok(ctx, gin.H{`region`: sel.Region()})
}

// RegionConfirm finalizes the pick; null means full frame.
func (s *Service) RegionConfirm(ctx *gin.Context) {
	sel := s.currentSelector()
	if sel == nil {
		fail(ctx, http.StatusConflict, modules.ErrKindSourceUnavailable, `no selector open`)
		return
	}
	ok(ctx, gin.H{`region`: sel.Confirm()})
}

func (s *Service) currentSelector() *region.Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector
}
