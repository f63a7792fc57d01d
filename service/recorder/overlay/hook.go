package overlay

import (
	"strings"
	"sync"
	"unicode"

	gohook "github.com/robotn/gohook"
)

// Listener pumps global pointer/key events from the platform hook into a
// Collector. One listener may run at a time; Stop is idempotent.
type Listener struct {
	mu        sync.Mutex
	collector *Collector
	running   bool
}

func NewListener(collector *Collector) *Listener {
	return &Listener{collector: collector}
}

// Start installs the global hook and begins feeding the collector.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.running || l.collector == nil {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()
	go l.pump()
}

func (l *Listener) pump() {
	events := gohook.Start()
	if events == nil {
		logger.Warn("global input hook unavailable; overlays will be empty")
		return
	}
	logger.Info("global input hook installed")
	for ev := range events {
		switch ev.Kind {
		case gohook.MouseMove, gohook.MouseDrag:
			l.collector.SetPointer(int(ev.X), int(ev.Y))
		case gohook.MouseDown:
			l.collector.AddClick(int(ev.X), int(ev.Y))
		case gohook.KeyDown, gohook.KeyHold:
			l.collector.KeyDown(keyName(ev))
		case gohook.KeyUp:
			l.collector.KeyUp(keyName(ev))
		}
	}
	logger.Debug("global input hook channel closed")
}

// Stop removes the global hook.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	gohook.End()
}

// keyName maps a hook event to the label shown on the key badge.
func keyName(ev gohook.Event) string {
	switch ev.Rawcode {
	case 160, 161:
		return `Shift`
	case 162, 163:
		return `Ctrl`
	case 164, 165:
		return `Alt`
	case 91, 92:
		return `Meta`
	}
	if ev.Keychar != 0 && unicode.IsPrint(rune(ev.Keychar)) && !unicode.IsSpace(rune(ev.Keychar)) {
		return strings.ToUpper(string(rune(ev.Keychar)))
	}
	return ""
}
