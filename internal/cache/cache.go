package cache

import (
	"sync"
	"time"
)

// Store is a TTL- and capacity-bounded cache of query results. Payloads are
// record lists; invalidation targets a whole domain+owner prefix while
// patching rewrites cached lists in place without a remote round trip.
//
// All operations are safe for concurrent use and never suspend.
type Store[T any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	entries    map[string]*entry[T]
	now        func() time.Time
}

type entry[T any] struct {
	key      Key
	payload  []T
	storedAt time.Time
}

// New creates a cache bounded to maxEntries with the given entry TTL.
func New[T any](maxEntries int, ttl time.Duration) *Store[T] {
	return &Store[T]{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*entry[T]),
		now:        time.Now,
	}
}

// Get returns the payload if present and not expired. A found-but-expired
// entry is removed as a side effect. Absence is a normal result.
func (s *Store[T]) Get(key Key) ([]T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := key.Encode()
	e, ok := s.entries[enc]
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		delete(s.entries, enc)
		return nil, false
	}
	return e.payload, true
}

// Lookup is the non-destructive read used by the query path. It reports
// whether the entry is fresh, but returns an expired payload too so callers
// can degrade to the last good value when the remote store is unreachable.
func (s *Store[T]) Lookup(key Key) (payload []T, fresh bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[key.Encode()]
	if !found {
		return nil, false, false
	}
	return e.payload, !s.expired(e), true
}

// Set stores or overwrites the entry with the current timestamp. Before
// inserting a new key at capacity, the entry with the oldest storedAt across
// the whole store is evicted. Overwriting an existing key never evicts.
func (s *Store[T]) Set(key Key, payload []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := key.Encode()
	if e, ok := s.entries[enc]; ok {
		e.payload = payload
		e.storedAt = s.now()
		return
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[enc] = &entry[T]{key: key, payload: payload, storedAt: s.now()}
}

// Invalidate removes every entry under the domain+owner prefix. Used after
// writes whose effect on cached filtered views cannot be derived locally,
// such as insertions.
func (s *Store[T]) Invalidate(prefix Prefix) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for enc, e := range s.entries {
		if prefix.Matches(e.key) {
			delete(s.entries, enc)
		}
	}
}

// Patch replaces the payload of every entry under the prefix with
// transform(payload). The transform must be pure; it runs under the store
// lock. Entry timestamps are untouched, so TTL keeps counting from the
// original store time.
func (s *Store[T]) Patch(prefix Prefix, transform func([]T) []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if prefix.Matches(e.key) {
			e.payload = transform(e.payload)
		}
	}
}

// Clear drops all entries irrespective of owner.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry[T])
}

// Len returns the current number of entries, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store[T]) expired(e *entry[T]) bool {
	return s.ttl > 0 && s.now().Sub(e.storedAt) > s.ttl
}

// evictOldest removes the entry with the smallest storedAt. Caller holds the
// lock. A linear scan is fine at the configured capacities (tens of entries).
func (s *Store[T]) evictOldest() {
	var (
		oldestEnc string
		oldestAt  time.Time
	)
	for enc, e := range s.entries {
		if oldestEnc == "" || e.storedAt.Before(oldestAt) {
			oldestEnc = enc
			oldestAt = e.storedAt
		}
	}
	if oldestEnc != "" {
		delete(s.entries, oldestEnc)
	}
}
