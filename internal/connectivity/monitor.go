// Package connectivity turns pushed reachability observations into
// restored/lost/type-changed events. The monitor does no polling of its
// own; whatever watches the OS network path feeds Update.
package connectivity

import (
	"log"
	"sync"
)

// PathStatus is one observation of the network path.
type PathStatus struct {
	Connected     bool
	InterfaceType string // "wifi", "ethernet", "cellular", ...
	IsExpensive   bool
	IsConstrained bool
}

type Monitor struct {
	mu             sync.Mutex
	current        PathStatus
	hasObservation bool

	onRestored    func()
	onLost        func()
	onTypeChanged func(from, to string)
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) OnNetworkRestored(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRestored = fn
}

func (m *Monitor) OnNetworkLost(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLost = fn
}

func (m *Monitor) OnConnectionTypeChanged(fn func(from, to string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTypeChanged = fn
}

func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Assume connected until the first observation arrives, so startup
	// refreshes are not blocked on the observer warming up.
	if !m.hasObservation {
		return true
	}
	return m.current.Connected
}

func (m *Monitor) Current() PathStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update compares the new observation against the previous one and fires
// the matching edge callback. Callbacks run outside the lock.
func (m *Monitor) Update(status PathStatus) {
	m.mu.Lock()
	prev := m.current
	hadObservation := m.hasObservation
	m.current = status
	m.hasObservation = true

	var restored, lost bool
	var typeFrom, typeTo string

	switch {
	case !hadObservation:
		// First observation establishes the baseline. A disconnected
		// baseline still counts as a loss since IsConnected assumed true.
		lost = !status.Connected
	case !prev.Connected && status.Connected:
		restored = true
	case prev.Connected && !status.Connected:
		lost = true
	case prev.Connected && status.Connected && prev.InterfaceType != status.InterfaceType:
		typeFrom, typeTo = prev.InterfaceType, status.InterfaceType
	}

	onRestored := m.onRestored
	onLost := m.onLost
	onTypeChanged := m.onTypeChanged
	m.mu.Unlock()

	if restored {
		log.Printf("[connectivity] network restored (%s)", status.InterfaceType)
		if onRestored != nil {
			onRestored()
		}
	}
	if lost {
		log.Printf("[connectivity] network lost")
		if onLost != nil {
			onLost()
		}
	}
	if typeTo != "" && typeFrom != typeTo {
		log.Printf("[connectivity] connection type changed: %s -> %s", typeFrom, typeTo)
		if onTypeChanged != nil {
			onTypeChanged(typeFrom, typeTo)
		}
	}
}
