package recorder

import "sync"

// sessionMetrics counts compositor-side work for the status stream.
type sessionMetrics struct {
	sync.Mutex
	framesComposited uint64
	framesDropped    uint64
	queueHighWater   int
	lastError        string
}

func (m *sessionMetrics) recordFrame(queued bool, depth int) {
	if m == nil {
		return
	}
	m.Lock()
	if queued {
		m.framesComposited++
	} else {
		m.framesDropped++
	}
	if depth > m.queueHighWater {
		m.queueHighWater = depth
	}
	m.Unlock()
}

func (m *sessionMetrics) recordError(err error) {
	if m == nil || err == nil {
		return
	}
	m.Lock()
	m.lastError = err.Error()
	m.Unlock()
}

func (m *sessionMetrics) snapshot() (frames, dropped uint64, highWater int, lastError string) {
	if m == nil {
		return
	}
	m.Lock()
	defer m.Unlock()
	return m.framesComposited, m.framesDropped, m.queueHighWater, m.lastError
}

func (m *sessionMetrics) reset() {
	if m == nil {
		return
	}
	m.Lock()
	m.framesComposited = 0
	m.framesDropped = 0
	m.queueHighWater = 0
	m.lastError = ``
	m.Unlock()
}
