// Package memory is the in-process DocumentStore. It is the default backend
// for local development and doubles as the reference implementation the
// service tests run against.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"conti/internal/core"
	"conti/internal/store"
)

// Store keeps every owner's collections in nested maps. All operations are
// guarded by one mutex; commits are atomic by construction.
type Store struct {
	mu   sync.Mutex
	data map[string]map[core.Collection]map[string]store.Document

	// RangeQueries mimics the backend's index support. When false, any query
	// carrying a date range fails with ErrQueryNotServable, which is how the
	// fallback path is exercised without a real backend.
	RangeQueries bool
}

func New() *Store {
	return &Store{
		data:         make(map[string]map[core.Collection]map[string]store.Document),
		RangeQueries: true,
	}
}

// List implements store.DocumentStore.
func (s *Store) List(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if q.HasRange() && !s.RangeQueries {
		return nil, fmt.Errorf("%w: no index on %s.%s", store.ErrQueryNotServable, q.Collection, core.FieldDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Document
	for _, doc := range s.data[q.Owner][q.Collection] {
		date, _ := doc.Fields[core.FieldDate].(string)
		if q.StartDate != "" && date < q.StartDate {
			continue
		}
		if q.EndDate != "" && date > q.EndDate {
			continue
		}
		out = append(out, doc.Clone())
	}
	store.SortByDateDesc(out)

	limit := q.Limit
	if limit == 0 {
		limit = store.DefaultLimit
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get implements store.DocumentStore.
func (s *Store) Get(ctx context.Context, owner string, col core.Collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.data[owner][col][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return doc.Clone(), nil
}

// Commit implements store.DocumentStore. The whole batch is validated before
// anything is applied, so a failing write leaves the store untouched.
func (s *Store) Commit(ctx context.Context, owner string, writes []store.Write) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if len(writes) > store.MaxWritesPerCommit {
		return fmt.Errorf("%w: %d > %d", store.ErrTooManyWrites, len(writes), store.MaxWritesPerCommit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if w.Op == store.WriteUpdate {
			if _, ok := s.data[owner][w.Collection][w.ID]; !ok {
				return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, store.ErrNotFound)
			}
		}
	}

	for _, w := range writes {
		switch w.Op {
		case store.WriteCreate:
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			doc := store.Document{ID: id, Fields: w.Fields}
			s.collection(owner, w.Collection)[id] = doc.Clone()
		case store.WriteUpdate:
			existing := s.data[owner][w.Collection][w.ID]
			s.data[owner][w.Collection][w.ID] = existing.Merge(w.Fields)
		case store.WriteDelete:
			delete(s.collection(owner, w.Collection), w.ID)
		}
	}
	return nil
}

// Increment implements store.DocumentStore.
func (s *Store) Increment(ctx context.Context, owner string, col core.Collection, id, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.data[owner][col][id]
	if !ok {
		return store.ErrNotFound
	}
	doc = doc.Merge(map[string]any{field: doc.Int64Field(field) + delta})
	s.data[owner][col][id] = doc
	return nil
}

func (s *Store) collection(owner string, col core.Collection) map[string]store.Document {
	if s.data[owner] == nil {
		s.data[owner] = make(map[core.Collection]map[string]store.Document)
	}
	if s.data[owner][col] == nil {
		s.data[owner][col] = make(map[string]store.Document)
	}
	return s.data[owner][col]
}
