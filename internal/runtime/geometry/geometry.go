package geometry

import (
	"sort"
	"sync"

	errspkg "github.com/drblury/simflow/internal/runtime/errors"
)

// Vector is a 3-component cartesian value. Positions are in millimetres,
// orientations are Euler angles in radians.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detector describes one sensor plane in the simulated setup. Messages tag
// their origin with the detector name; modules resolve the full description
// through the Manager when they need placement or model data.
type Detector struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Position    Vector `json:"position"`
	Orientation Vector `json:"orientation"`
}

// Manager is the registry of the simulated setup. It is filled during setup
// and read by modules at run time; the lock makes concurrent readers safe
// even though the usual discipline is single-goroutine.
type Manager struct {
	mu        sync.RWMutex
	detectors []*Detector
	names     map[string]struct{}
	external  map[string]any
}

// NewManager creates an empty geometry registry.
func NewManager() *Manager {
	return &Manager{
		names:    make(map[string]struct{}),
		external: make(map[string]any),
	}
}

// AddDetector registers a detector. Names are unique across the setup; a
// second registration under a taken name fails with DuplicateDetectorError.
func (m *Manager) AddDetector(det *Detector) error {
	if det == nil {
		return errspkg.ErrDetectorRequired
	}
	if det.Name == "" {
		return errspkg.ErrDetectorNameEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.names[det.Name]; taken {
		return errspkg.DuplicateDetectorError{Name: det.Name}
	}
	m.names[det.Name] = struct{}{}
	m.detectors = append(m.detectors, det)
	return nil
}

// Detectors returns all registered detectors in registration order.
func (m *Manager) Detectors() []*Detector {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Detector, len(m.detectors))
	copy(out, m.detectors)
	return out
}

// Detector looks a detector up by name.
func (m *Manager) Detector(name string) (*Detector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, det := range m.detectors {
		if det.Name == name {
			return det, true
		}
	}
	return nil, false
}

// DetectorsByModel returns every detector built from the given model, in
// registration order.
func (m *Manager) DetectorsByModel(model string) []*Detector {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Detector
	for _, det := range m.detectors {
		if det.Model == model {
			out = append(out, det)
		}
	}
	return out
}

// Names returns all detector names in lexical order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.names))
	for name := range m.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetExternalDescription stores a representation of the setup owned by an
// external framework, keyed by format name. The Manager keeps it opaque.
func (m *Manager) SetExternalDescription(format string, desc any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.external[format] = desc
}

// ExternalDescription retrieves a previously stored external representation.
func (m *Manager) ExternalDescription(format string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	desc, ok := m.external[format]
	return desc, ok
}
