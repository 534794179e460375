// Package connectivity tracks whether the device can reach the
// network. Subscribers are notified on the offline-to-online
// transition, which is what triggers the offline queue drain.
package connectivity

import (
	"log"
	"sync"
)

// Monitor holds the current online state.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func()
}

// New creates a monitor with the given initial state.
func New(online bool) *Monitor {
	return &Monitor{online: online}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback invoked on each offline-to-online
// transition. Callbacks run on the goroutine calling SetOnline.
func (m *Monitor) Subscribe(fn func()) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// SetOnline updates the state. Subscribers fire only when the state
// moves from offline to online; repeated reports of the same state do
// nothing.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	transition := online && !m.online
	m.online = online
	subs := m.subs
	m.mu.Unlock()

	if !transition {
		return
	}
	log.Printf("[connectivity] back online, notifying %d subscriber(s)", len(subs))
	for _, fn := range subs {
		fn()
	}
}
