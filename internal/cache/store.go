// Package cache provides bounded, TTL-based memoization for valuation results
// and financial snapshots.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"FairValue/internal/profiler"
)

// Entry is one cached value. It is logically absent once older than TTL.
type Entry[T any] struct {
	Value     T
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether e has outlived its TTL at now.
func (e Entry[T]) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Options configures a Store.
type Options struct {
	TTL      time.Duration
	Capacity int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Stats summarizes a Store.
type Stats struct {
	Entries   int
	Expired   int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Store is a bounded TTL map. When a Put finds the store full it drops the
// oldest fifth by creation time, then reclaims any expired entries left.
type Store[T any] struct {
	name    string
	mu      sync.Mutex
	entries map[string]Entry[T]
	ttl     time.Duration
	cap     int
	now     func() time.Time
	clone   func(T) T
	log     zerolog.Logger

	hits, misses, evictions int64
}

// NewStore creates a Store. clone copies values on the way in and out; nil
// stores values as-is.
func NewStore[T any](name string, opts Options, clone func(T) T, log zerolog.Logger) *Store[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1
	}
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Store[T]{
		name:    name,
		entries: make(map[string]Entry[T]),
		ttl:     opts.TTL,
		cap:     opts.Capacity,
		now:     opts.Now,
		clone:   clone,
		log:     log.With().Str("component", "cache").Str("cache", name).Logger(),
	}
}

// Get returns the live value for key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		var zero T
		return zero, false
	}
	if e.Expired(s.now()) {
		delete(s.entries, key)
		s.misses++
		s.log.Debug().Str("key", key).Msg("Cached entry expired")
		var zero T
		return zero, false
	}
	s.hits++
	return s.clone(e.Value), true
}

// Put stores v under key, evicting first when the store is full.
func (s *Store[T]) Put(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.cap {
		s.evictOldestLocked()
		s.sweepLocked(now)
	}
	s.entries[key] = Entry[T]{Value: s.clone(v), CreatedAt: now, TTL: s.ttl}
}

// Invalidate removes key.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]Entry[T])
	s.mu.Unlock()
	s.log.Info().Int("entries", n).Msg("Cleared cache")
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Len returns the number of stored entries, expired or not.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's counters.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{
		Entries:   len(s.entries),
		Capacity:  s.cap,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
	for _, e := range s.entries {
		if e.Expired(now) {
			st.Expired++
		}
	}
	return st
}

// CacheStats reports the store to the performance monitor.
func (s *Store[T]) CacheStats() []profiler.CacheStats {
	st := s.Stats()
	return []profiler.CacheStats{{
		Name:     s.name,
		Entries:  st.Entries,
		Expired:  st.Expired,
		Capacity: st.Capacity,
	}}
}

func (s *Store[T]) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	if n > 0 {
		s.evictions += int64(n)
		s.log.Debug().Int("expired", n).Msg("Reclaimed expired entries")
	}
	return n
}

func (s *Store[T]) evictOldestLocked() {
	remove := s.cap / 5
	if remove < 1 {
		remove = 1
	}

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].CreatedAt.Before(s.entries[keys[j]].CreatedAt)
	})
	if remove > len(keys) {
		remove = len(keys)
	}
	for _, k := range keys[:remove] {
		delete(s.entries, k)
	}
	s.evictions += int64(remove)
	s.log.Debug().Int("evicted", remove).Msg("Evicted oldest entries")
}
