// Package overlay aggregates pointer position, transient clicks, and held
// keys into immutable snapshots consumed one per compositor tick.
package overlay

import (
	"sort"
	"sync"
	"time"

	"github.com/kataras/golog"
)

var logger = golog.Child("[overlay]")

// ClickTTL is how long a click stays renderable after it happened.
const ClickTTL = 600 * time.Millisecond

// Toggles selects which overlay layers the compositor draws.
type Toggles struct {
	CursorHighlight bool
	ClickEffect     bool
	KeyBadge        bool
}

// Click is one transient click event in normalized source coordinates.
type Click struct {
	X, Y float64
	At   time.Time
}

// Snapshot is the immutable per-tick view of the overlay state. Pointer
// coordinates are normalized to [0, 1] over the source bounds.
type Snapshot struct {
	PointerX, PointerY float64
	PointerKnown       bool
	Clicks             []Click
	HeldKeys           []string
	Toggles            Toggles
}

// modifier display order for the key badge.
var modifierOrder = []string{`Ctrl`, `Alt`, `Shift`, `Meta`}

// OrderedKeys lists held keys for the badge: modifiers first in canonical
// order, then the remaining keys sorted.
func (s Snapshot) OrderedKeys() []string {
	held := make(map[string]bool, len(s.HeldKeys))
	for _, k := range s.HeldKeys {
		held[k] = true
	}
	out := make([]string, 0, len(s.HeldKeys))
	for _, mod := range modifierOrder {
		if held[mod] {
			out = append(out, mod)
			delete(held, mod)
		}
	}
	rest := make([]string, 0, len(held))
	for k := range held {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Collector is the single writer of overlay state. Input listeners feed
// it absolute source-pixel events; Snapshot hands out copies so a reader
// on another goroutine never observes a torn update.
type Collector struct {
	mu sync.Mutex

	sourceW, sourceH int
	toggles          Toggles

	pointerX, pointerY float64
	pointerKnown       bool
	clicks             []Click
	held               map[string]struct{}

	now func() time.Time
}

func NewCollector(sourceW, sourceH int, toggles Toggles) *Collector {
	return &Collector{
		sourceW: sourceW,
		sourceH: sourceH,
		toggles: toggles,
		held:    make(map[string]struct{}),
		now:     time.Now,
	}
}

// SetPointer records the latest pointer position in source pixels.
func (c *Collector) SetPointer(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointerX = normalize(x, c.sourceW)
	c.pointerY = normalize(y, c.sourceH)
	c.pointerKnown = true
}

// AddClick records a transient click at the given source-pixel position.
func (c *Collector) AddClick(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks = append(c.clicks, Click{
		X:  normalize(x, c.sourceW),
		Y:  normalize(y, c.sourceH),
		At: c.now(),
	})
}

// KeyDown marks a key as held; KeyUp releases it.
func (c *Collector) KeyDown(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held[name] = struct{}{}
}

func (c *Collector) KeyUp(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, name)
}

// Snapshot prunes expired clicks and returns a copy of the current state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	kept := c.clicks[:0]
	for _, click := range c.clicks {
		if now.Sub(click.At) < ClickTTL {
			kept = append(kept, click)
		}
	}
	c.clicks = kept

	snap := Snapshot{
		PointerX:     c.pointerX,
		PointerY:     c.pointerY,
		PointerKnown: c.pointerKnown,
		Toggles:      c.toggles,
	}
	if len(c.clicks) > 0 {
		snap.Clicks = make([]Click, len(c.clicks))
		copy(snap.Clicks, c.clicks)
	}
	if len(c.held) > 0 {
		snap.HeldKeys = make([]string, 0, len(c.held))
		for k := range c.held {
			snap.HeldKeys = append(snap.HeldKeys, k)
		}
	}
	return snap
}

// Reset clears all transient state.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointerKnown = false
	c.clicks = nil
	c.held = make(map[string]struct{})
}

func normalize(v, span int) float64 {
	if span <= 0 {
		return 0
	}
	n := float64(v) / float64(span)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
