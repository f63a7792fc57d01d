package overlay

import (
	"testing"
	"time"
)

func testCollector(t *testing.T) (*Collector, *time.Time) {
	t.Helper()
	c := NewCollector(1920, 1080, Toggles{CursorHighlight: true, ClickEffect: true, KeyBadge: true})
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCollectorClickPruning(t *testing.T) {
	c, now := testCollector(t)
	c.AddClick(960, 540)
	*now = now.Add(ClickTTL / 2)
	c.AddClick(100, 100)

	snap := c.Snapshot()
	if len(snap.Clicks) != 2 {
		t.Fatalf("expected 2 live clicks, got %d", len(snap.Clicks))
	}

	*now = now.Add(ClickTTL/2 + time.Millisecond)
	snap = c.Snapshot()
	if len(snap.Clicks) != 1 {
		t.Fatalf("expected first click expired, got %d clicks", len(snap.Clicks))
	}

	*now = now.Add(ClickTTL)
	if snap = c.Snapshot(); len(snap.Clicks) != 0 {
		t.Fatalf("expected all clicks expired, got %d", len(snap.Clicks))
	}
}

func TestCollectorNormalizesCoordinates(t *testing.T) {
	c, _ := testCollector(t)
	c.SetPointer(960, 540)
	snap := c.Snapshot()
	if !snap.PointerKnown {
		t.Fatalf("pointer should be known after SetPointer")
	}
	if snap.PointerX != 0.5 || snap.PointerY != 0.5 {
		t.Fatalf("expected normalized (0.5, 0.5), got (%v, %v)", snap.PointerX, snap.PointerY)
	}

	c.SetPointer(-50, 5000)
	snap = c.Snapshot()
	if snap.PointerX != 0 || snap.PointerY != 1 {
		t.Fatalf("expected clamped (0, 1), got (%v, %v)", snap.PointerX, snap.PointerY)
	}
}

func TestCollectorSnapshotIsACopy(t *testing.T) {
	c, _ := testCollector(t)
	c.AddClick(10, 10)
	c.KeyDown(`A`)

	snap := c.Snapshot()
	snap.Clicks[0].X = 99
	snap.HeldKeys[0] = `mutated`

	again := c.Snapshot()
	if again.Clicks[0].X == 99 {
		t.Fatalf("click slice shared with caller")
	}
	if again.HeldKeys[0] == `mutated` {
		t.Fatalf("held key slice shared with caller")
	}
}

func TestCollectorKeyLifecycle(t *testing.T) {
	c, _ := testCollector(t)
	c.KeyDown(`Shift`)
	c.KeyDown(`Shift`) // repeat while held
	c.KeyDown(`A`)
	if keys := c.Snapshot().OrderedKeys(); len(keys) != 2 {
		t.Fatalf("expected 2 held keys, got %v", keys)
	}
	c.KeyUp(`Shift`)
	keys := c.Snapshot().OrderedKeys()
	if len(keys) != 1 || keys[0] != `A` {
		t.Fatalf("expected only A held, got %v", keys)
	}
}

func TestOrderedKeysModifiersFirst(t *testing.T) {
	snap := Snapshot{HeldKeys: []string{`B`, `Shift`, `A`, `Ctrl`}}
	keys := snap.OrderedKeys()
	want := []string{`Ctrl`, `Shift`, `A`, `B`}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}
}

func TestCollectorReset(t *testing.T) {
	c, _ := testCollector(t)
	c.SetPointer(10, 10)
	c.AddClick(10, 10)
	c.KeyDown(`X`)
	c.Reset()
	snap := c.Snapshot()
	if snap.PointerKnown || len(snap.Clicks) != 0 || len(snap.HeldKeys) != 0 {
		t.Fatalf("expected empty snapshot after reset, got %+v", snap)
	}
}
