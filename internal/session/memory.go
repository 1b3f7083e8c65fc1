package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 2 * time.Hour

// MemoryStore keeps sessions in process memory. Every Save restarts the idle
// timer.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates an in-memory store expiring sessions after idle.
func NewMemoryStore(idle time.Duration) *MemoryStore {
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	return &MemoryStore{c: gocache.New(idle, idle/2)}
}

// Get returns a copy of the stored state.
func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*State).Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, id string, s *State) error {
	m.c.SetDefault(id, s.Clone())
	return nil
}

// Delete removes the session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.c.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int { return m.c.ItemCount() }
