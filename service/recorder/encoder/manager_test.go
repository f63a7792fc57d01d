package encoder

import (
	"errors"
	"fmt"
	"testing"
)

// fakeFactory is a controllable registry entry.
type fakeFactory struct {
	cap       Capability
	available bool
	openErr   error
	opened    int
}

func (f *fakeFactory) Capability() Capability { return f.cap }
func (f *fakeFactory) Available() bool        { return f.available }

func (f *fakeFactory) Open(cfg Config) (Muxer, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	m, err := aviFactory{}.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &namedMuxer{Muxer: m, name: f.cap.Name}, nil
}

type namedMuxer struct {
	Muxer
	name string
}

func (m *namedMuxer) Name() string { return m.name }

func newTestManager(factories ...Factory) *Manager {
	m := &Manager{factories: make(map[string]Factory)}
	for _, f := range factories {
		m.Register(f)
	}
	return m
}

func TestNegotiatePrefersFirstAvailable(t *testing.T) {
	hw := &fakeFactory{cap: Capability{Name: `hw`, MimeType: `video/mp4`}, available: true}
	m := newTestManager(hw, aviFactory{})
	muxer, err := m.Negotiate([]string{`hw`, `avi-mjpeg`}, testConfig(false))
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if muxer.Name() != `hw` {
		t.Fatalf("expected hw container, got %s", muxer.Name())
	}
}

func TestNegotiateSkipsUnavailableAndUnknown(t *testing.T) {
	hw := &fakeFactory{cap: Capability{Name: `hw`}, available: false}
	m := newTestManager(hw, aviFactory{})
	muxer, err := m.Negotiate([]string{`bogus`, `hw`, `avi-mjpeg`}, testConfig(false))
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if muxer.Name() != `avi-mjpeg` {
		t.Fatalf("expected baseline fallback, got %s", muxer.Name())
	}
}

func TestNegotiateFallsBackWhenOpenFails(t *testing.T) {
	hw := &fakeFactory{
		cap:       Capability{Name: `hw`},
		available: true,
		openErr:   fmt.Errorf("device busy"),
	}
	m := newTestManager(hw, aviFactory{})
	muxer, err := m.Negotiate([]string{`hw`}, testConfig(false))
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if muxer.Name() != `avi-mjpeg` {
		t.Fatalf("expected baseline after open failure, got %s", muxer.Name())
	}
}

func TestNegotiateAppendsBaselineToEmptyPrefs(t *testing.T) {
	m := newTestManager(aviFactory{})
	muxer, err := m.Negotiate(nil, testConfig(false))
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if muxer.Name() != `avi-mjpeg` {
		t.Fatalf("expected baseline, got %s", muxer.Name())
	}
}

func TestNegotiateFailsWithNoCandidates(t *testing.T) {
	m := newTestManager()
	if _, err := m.Negotiate([]string{`anything`}, testConfig(false)); !errors.Is(err, ErrNegotiationFailed) {
		t.Fatalf("expected ErrNegotiationFailed, got %v", err)
	}
}

func TestCapabilitiesReportAvailability(t *testing.T) {
	hw := &fakeFactory{cap: Capability{Name: `hw`}, available: false}
	m := newTestManager(aviFactory{}, hw)
	caps := m.Capabilities()
	if len(caps) != 2 {
		t.Fatalf("expected 2 capabilities, got %d", len(caps))
	}
	if caps[0].Name != `avi-mjpeg` || !caps[0].Available || !caps[0].Baseline {
		t.Fatalf("baseline capability malformed: %+v", caps[0])
	}
	if caps[1].Name != `hw` || caps[1].Available {
		t.Fatalf("hw capability malformed: %+v", caps[1])
	}
}

func TestInstanceHasBaseline(t *testing.T) {
	caps := Instance().Capabilities()
	var baseline bool
	for _, c := range caps {
		if c.Baseline && c.Available {
			baseline = true
		}
	}
	if !baseline {
		t.Fatalf("registry must always carry an available baseline, got %+v", caps)
	}
}
