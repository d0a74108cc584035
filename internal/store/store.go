// Package store defines the port every remote document backend implements.
// Adapters live in the sub-packages (memory, sqlite, firestore) and are
// responsible for mapping their native failures onto the shared error
// taxonomy, keeping the query fallback logic backend-agnostic.
package store

import (
	"context"

	"conti/internal/core"
)

// MaxWritesPerCommit is the backend hard ceiling on operations in one atomic
// commit unit. Every adapter's Commit rejects larger batches; callers chunk
// safely below it.
const MaxWritesPerCommit = 500

// DefaultLimit caps query results when the caller does not.
const DefaultLimit = 500

// NoLimit disables the result cap. Only destructive full-collection reads
// (delete-all) use it.
const NoLimit = -1

type (
	// Document is a record as stored remotely: a stable identifier plus a
	// flat field map. Ownership is implicit in the addressing, records of
	// different owners never meet.
	Document struct {
		ID     string
		Fields map[string]any
	}

	// Query is a filtered read against one owner's collection. StartDate and
	// EndDate are an inclusive range on the string-sortable date field;
	// Category is an equality predicate applied client-side. Results are
	// ordered by date descending and capped at Limit.
	Query struct {
		Owner      string
		Collection core.Collection
		StartDate  string
		EndDate    string
		Category   string
		Limit      int
	}

	// WriteOp discriminates the intents inside a commit unit.
	WriteOp int

	// Write is a single create/update/delete intent. Update merges Fields
	// onto the existing record; Create replaces the record wholesale.
	Write struct {
		Op         WriteOp
		Collection core.Collection
		ID         string
		Fields     map[string]any
	}
)

const (
	WriteCreate WriteOp = iota
	WriteUpdate
	WriteDelete
)

// DocumentStore is the remote document backend. Addressing follows
// users/<owner>/<collection>/<id>, with nested sub-collections extending the
// path one level further.
type DocumentStore interface {
	// List executes the query. Range predicates the backend cannot serve
	// surface as ErrQueryNotServable; the caller decides whether to retry
	// broader.
	List(ctx context.Context, q Query) ([]Document, error)

	// Get fetches one record. Absence is ErrNotFound.
	Get(ctx context.Context, owner string, col core.Collection, id string) (Document, error)

	// Commit applies the writes as one atomic unit, or fails as one.
	// Batches above MaxWritesPerCommit are rejected before any write.
	Commit(ctx context.Context, owner string, writes []Write) error

	// Increment atomically adds delta to a numeric field of an existing
	// record, without a read-modify-write of the value.
	Increment(ctx context.Context, owner string, col core.Collection, id, field string, delta int64) error
}

// HasRange reports whether the query carries server-side range predicates.
func (q Query) HasRange() bool {
	return q.StartDate != "" || q.EndDate != ""
}

// WithoutRange returns the broadened query used by the fallback path:
// predicates removed, ordering and cap preserved.
func (q Query) WithoutRange() Query {
	broad := q
	broad.StartDate = ""
	broad.EndDate = ""
	return broad
}

// Matches applies the query's predicates to a single document, used when
// filtering client-side after a broad read.
func (q Query) Matches(d Document) bool {
	date, _ := d.Fields[core.FieldDate].(string)
	if q.StartDate != "" && date < q.StartDate {
		return false
	}
	if q.EndDate != "" && date > q.EndDate {
		return false
	}
	if q.Category != "" {
		category, _ := d.Fields[core.FieldCategory].(string)
		if category != q.Category {
			return false
		}
	}
	return true
}
