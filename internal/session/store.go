package session

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/pamperito/internal/clock"
	"github.com/roach88/pamperito/internal/domain"
)

// Session is one customer's in-flight conversation.
type Session struct {
	// ID correlates log lines of one conversation lifetime.
	ID          string
	State       State
	LastUpdated time.Time
	// Nudged is set once a reminder was sent and survives later updates
	// until the session is deleted.
	Nudged bool
}

// Store maps customer identifiers to sessions. Implementations must be
// safe for concurrent use; concurrent Sets for the same key are last write
// wins.
type Store interface {
	// Get returns the session for key, if any.
	Get(key string) (Session, bool)

	// Set installs st as the session's state and refreshes LastUpdated.
	// ID and Nudged of an existing session are kept.
	Set(key string, st State) Session

	// Delete ends the session for key. Deleting a missing key is a no-op.
	Delete(key string)

	// Keys returns a snapshot of the current keys.
	Keys() []string

	// MarkNudged sets Nudged only if the session still has the given
	// LastUpdated and was not nudged yet. Reports whether it did.
	MarkNudged(key string, lastUpdated time.Time) bool

	// CompareAndDelete deletes the session only if it still has the given
	// LastUpdated. Reports whether it did.
	CompareAndDelete(key string, lastUpdated time.Time) bool
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	newID    func() string
	sessions map[string]Session
}

// NewMemoryStore creates an empty store. A nil clock means the system
// clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryStore{
		clock:    c,
		newID:    domain.NewCorrelationID,
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) Get(key string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok
}

func (m *MemoryStore) Set(key string, st State) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		s = Session{ID: m.newID()}
	}
	s.State = st
	s.LastUpdated = m.clock.Now()
	m.sessions[key] = s
	return s
}

func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) MarkNudged(key string, lastUpdated time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok || s.Nudged || !s.LastUpdated.Equal(lastUpdated) {
		return false
	}
	s.Nudged = true
	m.sessions[key] = s
	return true
}

func (m *MemoryStore) CompareAndDelete(key string, lastUpdated time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok || !s.LastUpdated.Equal(lastUpdated) {
		return false
	}
	delete(m.sessions, key)
	return true
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
