package engine

import "sync"

// Monitor is the connectivity signal the host environment feeds the engine.
// Subscribe delivers the discrete online/offline transitions; Online
// answers the current state for entry checks.
type Monitor interface {
	// Online reports the current connectivity state.
	Online() bool

	// Subscribe registers a transition callback and returns its cancel
	// function. The callback receives true on transition to online and
	// false on transition to offline. Repeated reports of the same state
	// are not delivered.
	Subscribe(fn func(online bool)) (cancel func())
}

// SignalMonitor is a Monitor driven by explicit SetOnline calls. Hosts
// bridge their platform's connectivity events into it; tests drive it
// directly.
type SignalMonitor struct {
	mu      sync.Mutex
	online  bool
	subs    map[int]func(bool)
	nextSub int
}

// NewSignalMonitor creates a monitor with the given initial state.
// No transition is delivered for the initial state.
func NewSignalMonitor(online bool) *SignalMonitor {
	return &SignalMonitor{
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

// Online reports the current state.
func (m *SignalMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the state and, on a transition, notifies subscribers.
// Setting the current state again is a no-op.
func (m *SignalMonitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers a transition callback.
func (m *SignalMonitor) Subscribe(fn func(online bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
