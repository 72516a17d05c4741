package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
)

// entry guards one session. removed is set under mu when the session leaves
// the store; a goroutine that looked the entry up before removal sees it and
// treats the session as absent.
type entry struct {
	mu      sync.Mutex
	session models.Session
	removed bool
}

// MemoryStore keeps sessions in process memory. The map and the per-user
// index are guarded by mu; each session is guarded by its own entry lock.
// Lock order is entry.mu before mu.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byUser  map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		byUser:  make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) lookup(token string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[token]
}

// unlink drops e from the maps. Callers hold e.mu and have set e.removed.
func (m *MemoryStore) unlink(token string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[token] != e {
		return
	}
	delete(m.entries, token)
	if tokens, ok := m.byUser[e.session.UserID]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(m.byUser, e.session.UserID)
		}
	}
}

func (m *MemoryStore) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[s.Token]; ok {
		return common.ErrorAlreadyExists
	}
	m.entries[s.Token] = &entry{session: *s}
	tokens, ok := m.byUser[s.UserID]
	if !ok {
		tokens = make(map[string]struct{})
		m.byUser[s.UserID] = tokens
	}
	tokens[s.Token] = struct{}{}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (*models.Session, error) {
	e := m.lookup(token)
	if e == nil {
		return nil, common.ErrorNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return nil, common.ErrorNotFound
	}
	s := e.session
	return &s, nil
}

func (m *MemoryStore) Refresh(_ context.Context, token string, now, extendTo time.Time) (*models.Session, error) {
	e := m.lookup(token)
	if e == nil {
		return nil, common.ErrorNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return nil, common.ErrorNotFound
	}
	if e.session.ExpiredAt(now) {
		e.removed = true
		m.unlink(token, e)
		return nil, common.ErrSessionExpired
	}

	e.session.LastSeenAt = now
	if extendTo.After(e.session.ExpiresAt) {
		e.session.ExpiresAt = extendTo
	}
	s := e.session
	return &s, nil
}

func (m *MemoryStore) removeIfExpired(token string, e *entry, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed || !e.session.ExpiredAt(now) {
		return false
	}
	e.removed = true
	m.unlink(token, e)
	return true
}

func (m *MemoryStore) remove(token string, e *entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return false
	}
	e.removed = true
	m.unlink(token, e)
	return true
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	if e := m.lookup(token); e != nil {
		m.remove(token, e)
	}
	return nil
}

func (m *MemoryStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	victims := make(map[string]*entry, len(m.byUser[userID]))
	for token := range m.byUser[userID] {
		victims[token] = m.entries[token]
	}
	m.mu.RUnlock()

	n := 0
	for token, e := range victims {
		if e != nil && m.remove(token, e) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.RLock()
	snapshot := make(map[string]*entry, len(m.entries))
	for token, e := range m.entries {
		snapshot[token] = e
	}
	m.mu.RUnlock()

	n := 0
	for token, e := range snapshot {
		if m.removeIfExpired(token, e, now) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error { return nil }
