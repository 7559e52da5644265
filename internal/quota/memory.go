package quota

import (
	"context"
	"sync"
)

type counter struct {
	period string
	n      int
}

// MemoryStore keeps counters in process. A counter resets when it is
// touched in a new period.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter)}
}

// Usage implements Store.
func (m *MemoryStore) Usage(_ context.Context, source, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(source, period).n, nil
}

// Increment implements Store.
func (m *MemoryStore) Increment(_ context.Context, source, period string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current(source, period).n++
	return nil
}

// current returns the counter for source, resetting it on period rollover.
// Caller holds m.mu.
func (m *MemoryStore) current(source, period string) *counter {
	c, ok := m.counters[source]
	if !ok {
		c = &counter{period: period}
		m.counters[source] = c
	}
	if c.period != period {
		c.period = period
		c.n = 0
	}
	return c
}
