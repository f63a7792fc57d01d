package encoder

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kataras/golog"
)

var logger = golog.Child("[encoder]")

// ErrNegotiationFailed means not even the baseline container could be
// opened; the attempted start fails and the session stays Idle.
var ErrNegotiationFailed = errors.New(`encoder: no supported container could be negotiated`)

// Manager holds the registered container factories and performs
// preference-ordered negotiation with a guaranteed-baseline fallback.
type Manager struct {
	mu        sync.Mutex
	factories map[string]Factory
	order     []string
	baseline  string
}

var (
	managerOnce sync.Once
	managerInst *Manager
)

// Instance returns the singleton manager with the built-in factories
// registered.
func Instance() *Manager {
	managerOnce.Do(func() {
		managerInst = &Manager{factories: make(map[string]Factory)}
		managerInst.Register(aviFactory{})
		registerPlatformFactories(managerInst)
	})
	return managerInst
}

// Register adds a factory. The first baseline factory registered becomes
// the fallback.
func (m *Manager) Register(f Factory) {
	if m == nil || f == nil {
		return
	}
	cap := f.Capability()
	if cap.Name == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.factories[cap.Name]; !dup {
		m.order = append(m.order, cap.Name)
	}
	m.factories[cap.Name] = f
	if cap.Baseline && m.baseline == "" {
		m.baseline = cap.Name
	}
}

// Capabilities lists the registered factories with live availability.
func (m *Manager) Capabilities() []Capability {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capability, 0, len(m.order))
	for _, name := range m.order {
		f := m.factories[name]
		cap := f.Capability()
		cap.Available = f.Available()
		out = append(out, cap)
	}
	return out
}

// Negotiate walks the caller's preference list and opens the first
// supported container, falling back to the baseline. Unknown or
// unavailable names are skipped with a log line, not an error.
func (m *Manager) Negotiate(prefs []string, cfg Config) (Muxer, error) {
	if m == nil {
		return nil, ErrNegotiationFailed
	}
	m.mu.Lock()
	baseline := m.baseline
	candidates := make([]Factory, 0, len(prefs)+1)
	seen := make(map[string]bool, len(prefs)+1)
	for _, name := range prefs {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		f, ok := m.factories[name]
		if !ok {
			logger.Warnf("container preference %q not registered, skipping", name)
			continue
		}
		candidates = append(candidates, f)
	}
	if baseline != "" && !seen[baseline] {
		candidates = append(candidates, m.factories[baseline])
	}
	m.mu.Unlock()

	for _, f := range candidates {
		cap := f.Capability()
		if !f.Available() {
			logger.Debugf("container %q unavailable, skipping", cap.Name)
			continue
		}
		muxer, err := f.Open(cfg)
		if err != nil {
			logger.Warnf("container %q failed to open: %v", cap.Name, err)
			continue
		}
		logger.Infof("negotiated container %q (%s)", cap.Name, cap.MimeType)
		return muxer, nil
	}
	return nil, fmt.Errorf("%w (tried %d candidates)", ErrNegotiationFailed, len(candidates))
}

// registerPlatformFactories probes for hardware-backed containers. The
// probe is gated behind an environment switch while the platform paths
// mature; factories that fail the probe still appear in Capabilities as
// unavailable so the UI can explain the fallback.
func registerPlatformFactories(m *Manager) {
	m.Register(&platformFactory{
		cap: Capability{
			Name:        `mp4-h264`,
			Container:   `mp4`,
			MimeType:    `video/mp4`,
			Audio:       true,
			Description: `Hardware H.264 in MP4`,
		},
		enabled: strings.EqualFold(os.Getenv(`REEL_EXPERIMENTAL_ENCODERS`), `1`),
	})
}

type platformFactory struct {
	cap     Capability
	enabled bool
}

func (f *platformFactory) Capability() Capability { return f.cap }

func (f *platformFactory) Available() bool {
	// No hardware encoder integration has landed yet; the capability is
	// advertised as unavailable even when the experimental gate is set.
	return false
}

func (f *platformFactory) Open(Config) (Muxer, error) {
	return nil, fmt.Errorf("encoder: %s not available on this platform", f.cap.Name)
}
