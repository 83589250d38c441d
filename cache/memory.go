package cache

import (
	"context"
	"sync"
	"time"
)

// purgeFloor is the entry count at which Put first sweeps expired entries.
const purgeFloor = 1024

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process cache with a per-entry TTL. Expired entries are
// dropped lazily on access and in bulk by Purge. Put also purges once the
// map has doubled since the last sweep, so keys that are never read again
// cannot grow it without bound.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	now       func() time.Time
	nextPurge int
}

// NewMemory returns an empty cache. ttl <= 0 keeps entries until removed.
func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

// NewMemoryWithClock is NewMemory with an injectable clock.
func NewMemoryWithClock(ttl time.Duration, clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{
		entries:   make(map[string]entry),
		ttl:       ttl,
		now:       clock,
		nextPurge: purgeFloor,
	}
}

func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Put(_ context.Context, key string, value any) error {
	now := m.now()
	e := entry{value: value}
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.nextPurge {
		m.purgeLocked(now)
		m.nextPurge = max(2*len(m.entries), purgeFloor)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Purge drops every expired entry and returns how many were removed.
func (m *Memory) Purge() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeLocked(now)
}

func (m *Memory) purgeLocked(now time.Time) int {
	removed := 0
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
