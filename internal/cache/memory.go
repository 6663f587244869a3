package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*memSession
}

type memSession struct {
	entries map[string]memEntry
	// order is insertion order for MaxEntries eviction.
	order []string
}

type memEntry struct {
	reply   string
	savedAt time.Time
}

// NewMemoryStore returns an empty store governed by policy.
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{policy: policy, now: time.Now, sessions: map[string]*memSession{}}
}

func (m *MemoryStore) expired(e memEntry) bool {
	return m.policy.TTL > 0 && m.now().Sub(e.savedAt) > m.policy.TTL
}

// Get implements Store. Expired entries are dropped on read.
func (m *MemoryStore) Get(_ context.Context, session, fingerprint string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[session]
	if !ok {
		return "", false, nil
	}
	e, ok := s.entries[fingerprint]
	if !ok {
		return "", false, nil
	}
	if m.expired(e) {
		s.remove(fingerprint)
		return "", false, nil
	}
	return e.reply, true, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, session, fingerprint, reply string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[session]
	if !ok {
		s = &memSession{entries: map[string]memEntry{}}
		m.sessions[session] = s
	}
	if _, exists := s.entries[fingerprint]; !exists {
		s.order = append(s.order, fingerprint)
	}
	s.entries[fingerprint] = memEntry{reply: reply, savedAt: m.now()}
	for m.policy.MaxEntries > 0 && len(s.entries) > m.policy.MaxEntries {
		s.remove(s.order[0])
	}
	return nil
}

// EndSession implements Store.
func (m *MemoryStore) EndSession(_ context.Context, session string) error {
	m.mu.Lock()
	delete(m.sessions, session)
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries held for session.
func (m *MemoryStore) Len(session string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[session]; ok {
		return len(s.entries)
	}
	return 0
}

// PurgeExpired removes expired entries across all sessions and drops
// sessions left empty. It returns the number of entries removed.
func (m *MemoryStore) PurgeExpired() int {
	if m.policy.TTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		for fp, e := range s.entries {
			if m.expired(e) {
				s.remove(fp)
				removed++
			}
		}
		if len(s.entries) == 0 {
			delete(m.sessions, id)
		}
	}
	return removed
}

func (s *memSession) remove(fingerprint string) {
	delete(s.entries, fingerprint)
	for i, fp := range s.order {
		if fp == fingerprint {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
