// Package services wires the entry cache and the remote document store into
// the read and write coordination layer the dashboard consumes: cache-first
// queries with an index fallback, chunked batched mutations with surgical
// cache maintenance, existence-gated atomic counters and owner-scoped resets.
package services

import (
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/store"
)

var (
	ErrNoRecords = errors.New("no records to write")
	ErrNoFields  = errors.New("no fields to update")
	ErrMissingID = errors.New("missing record id")
)

// Config tunes the data service.
type Config struct {
	// CacheTTL bounds staleness of cached query results.
	CacheTTL time.Duration

	// CacheCapacity bounds the number of cached entries; the oldest entry is
	// evicted when a new key would exceed it.
	CacheCapacity int

	// ChunkSize is the maximum writes per commit unit, kept safely below the
	// backend ceiling of store.MaxWritesPerCommit.
	ChunkSize int

	// RemoteTimeout bounds every call that reaches the remote store, reads
	// included.
	RemoteTimeout time.Duration

	// CoalesceReads deduplicates concurrent identical in-flight queries.
	// Off by default: duplicate remote reads are harmless (last write to the
	// cache wins) and the simpler behavior is the baseline contract.
	CoalesceReads bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:      5 * time.Minute,
		CacheCapacity: 50,
		ChunkSize:     450,
		RemoteTimeout: 10 * time.Second,
		CoalesceReads: false,
	}
}

// DataService is the facade the UI layer talks to. Constructed once per
// session and injected, never ambient. A nil store is the documented
// "feature disabled" state: reads return empty, writes no-op.
type DataService struct {
	cache     *cache.Store[store.Document]
	queries   *QueryExecutor
	mutations *MutationCoordinator
	counters  *CounterService
}

// New builds a DataService over the given backend. events may be nil.
func New(cfg Config, st store.DocumentStore, events *amqp.Publisher) *DataService {
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > store.MaxWritesPerCommit {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultConfig().RemoteTimeout
	}

	c := cache.New[store.Document](cfg.CacheCapacity, cfg.CacheTTL)

	var group *singleflight.Group
	if cfg.CoalesceReads {
		group = new(singleflight.Group)
	}

	return &DataService{
		cache: c,
		queries: &QueryExecutor{
			cache:   c,
			store:   st,
			timeout: cfg.RemoteTimeout,
			group:   group,
		},
		mutations: &MutationCoordinator{
			cache:     c,
			store:     st,
			chunkSize: cfg.ChunkSize,
			timeout:   cfg.RemoteTimeout,
			events:    events,
		},
		counters: &CounterService{
			cache:   c,
			store:   st,
			timeout: cfg.RemoteTimeout,
			events:  events,
		},
	}
}

// Queries returns the read path.
func (s *DataService) Queries() *QueryExecutor { return s.queries }

// Mutations returns the write path.
func (s *DataService) Mutations() *MutationCoordinator { return s.mutations }

// Counters returns the atomic counter path.
func (s *DataService) Counters() *CounterService { return s.counters }

// ResetOwner clears every cached entry belonging to one owner across all
// domains. Local only; used on session end or after bulk destructive
// operations.
func (s *DataService) ResetOwner(owner string) {
	for _, d := range core.Domains() {
		s.cache.Invalidate(cache.Prefix{Domain: d, Owner: owner})
	}
}

// ResetAll drops the entire cache irrespective of owner.
func (s *DataService) ResetAll() {
	s.cache.Clear()
}
