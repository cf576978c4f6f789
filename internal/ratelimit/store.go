// Package ratelimit implements per-client sliding-log admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Snapshot describes a key's log as it was before the current request was
// considered. Oldest is zero when Count is zero.
type Snapshot struct {
	Count   int
	Oldest  time.Time
	Allowed bool
}

// Store records request timestamps per key. Hit prunes entries at or before
// now-window, then appends now only if fewer than limit entries remain. The
// prune, count and append must be atomic per key.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Snapshot, error)
}

// Pruner is implemented by stores that hold state in process memory and need
// periodic eviction of idle keys.
type Pruner interface {
	Prune(now time.Time, window time.Duration) int
}

// MemoryStore keeps an ascending slice of timestamps per key behind one mutex.
// When the map grows past maxKeys, keys whose newest hit has left the window
// are evicted.
type MemoryStore struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	maxKeys int
}

func NewMemoryStore(maxKeys int) *MemoryStore {
	if maxKeys <= 0 {
		maxKeys = 10000
	}

	return &MemoryStore{
		hits:    make(map[string][]time.Time),
		maxKeys: maxKeys,
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Snapshot, error) {
	threshold := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.hits[key]
	cut := 0
	for cut < len(log) && !log[cut].After(threshold) {
		cut++
	}
	log = log[cut:]

	snap := Snapshot{Count: len(log)}
	if len(log) > 0 {
		snap.Oldest = log[0]
	}

	if len(log) >= limit {
		s.hits[key] = log
		return snap, nil
	}

	snap.Allowed = true
	s.hits[key] = append(log, now)

	if len(s.hits) > s.maxKeys {
		s.evictLocked(threshold)
	}

	return snap, nil
}

// Prune drops every key with no hit inside the window and returns how many
// keys were removed.
func (s *MemoryStore) Prune(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.evictLocked(now.Add(-window))
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.hits)
}

func (s *MemoryStore) evictLocked(threshold time.Time) int {
	removed := 0
	for key, log := range s.hits {
		if len(log) == 0 || !log[len(log)-1].After(threshold) {
			delete(s.hits, key)
			removed++
		}
	}
	return removed
}
