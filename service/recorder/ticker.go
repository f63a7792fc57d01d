package recorder

import "time"

// throttle gates the compositor tick loop: the poll loop asks
// continuously, but a tick is performed only when a full frame interval
// has elapsed since the last performed tick. Scheduling catches up by one
// interval at a time, then resyncs if it has lost too much ground, so
// the composite rate stays pinned to the configured fps without bursts.
type throttle struct {
	interval time.Duration
	next     time.Time
	prev     time.Time
}

func newThrottle(fps int) *throttle {
	if fps <= 0 {
		fps = 30
	}
	return &throttle{interval: time.Second / time.Duration(fps)}
}

func (t *throttle) ready(now time.Time) bool {
	if !t.next.IsZero() && now.Before(t.next) {
		return false
	}
	t.prev = t.next
	if t.next.IsZero() {
		t.next = now.Add(t.interval)
	} else {
		t.next = t.next.Add(t.interval)
		if t.next.Before(now) {
			t.next = now.Add(t.interval)
		}
	}
	return true
}

// cancel gives back a slot handed out by ready, for ticks that were
// skipped entirely (source frame not yet decodable).
func (t *throttle) cancel() {
	t.next = t.prev
}
