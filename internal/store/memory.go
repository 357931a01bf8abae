package store

import (
	"sync"

	"github.com/verihire/outbox/internal/queue"
)

// MemoryStore is a process-local slot for tests and the scenario harness.
// It round-trips through the same marshaling as the durable stores so slot
// format bugs show up in memory-backed tests too.
type MemoryStore struct {
	mu      sync.Mutex
	payload []byte
	saves   int
}

// NewMemoryStore creates an empty in-memory slot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load parses the last saved payload. Empty slot means empty queue.
func (s *MemoryStore) Load() ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.payload == nil {
		return nil, nil
	}
	return Unmarshal(s.payload)
}

// Save serializes and retains the items.
func (s *MemoryStore) Save(items []queue.Item) error {
	data, err := Marshal(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.payload = data
	s.saves++
	s.mu.Unlock()
	return nil
}

// Payload returns the raw slot bytes, for round-trip assertions.
func (s *MemoryStore) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.payload...)
}

// Saves returns how many times the slot was written. Tests use it to
// verify that every mutation persists.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
