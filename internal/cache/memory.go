package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rootsploit/deepx/internal/subdomain"
)

type memEntry struct {
	hosts   subdomain.Set
	created time.Time
}

// MemoryStore keeps entries for the lifetime of the process.
type MemoryStore struct {
	base
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	return &MemoryStore{
		base:    newBase(ttl, opts),
		entries: make(map[string]memEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (subdomain.Set, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key.ID()]
	m.mu.RUnlock()
	if !ok || m.expired(e.created) {
		return nil, false, nil
	}
	return e.hosts.Clone(), true, nil
}

func (m *MemoryStore) Put(_ context.Context, key Key, hosts subdomain.Set) error {
	e := memEntry{hosts: hosts.Clone(), created: m.now()}
	m.mu.Lock()
	m.entries[key.ID()] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if m.expired(e.created) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Backend: "memory", Total: len(m.entries)}
	for _, e := range m.entries {
		if m.expired(e.created) {
			st.Expired++
		}
	}
	return st, nil
}

func (m *MemoryStore) Close() error { return nil }
