// Package cache provides the pluggable response cache used by the fetcher.
//
// The cache is a pure performance optimization: disabling it never changes
// the set of crawl results, only latency. Stores must be safe for concurrent
// use; a lost race costs at most one unnecessary refetch.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached fetch response with an expiration timestamp.
type Entry struct {
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	FetchedAt  time.Time `json:"fetched_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the entry must not be served at time now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store maps a fetch key (the normalized URL) to a cached response.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry) error
	Close() error
}

// MemoryStore is an in-process Store with TTL expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a live entry for key, treating expired entries as misses.
func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if entry.Expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock: a Put may have refreshed it.
		if current, still := s.entries[key]; still && current.Expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

// Put stores entry under key, overwriting any previous value.
func (s *MemoryStore) Put(key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
