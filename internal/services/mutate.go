package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/store"
)

// MutationCoordinator commits writes to the remote store and keeps the entry
// cache coherent afterwards. A single update or delete has a mechanically
// derivable effect on any cached list, so those patch in place; an insertion
// may or may not belong to a given cached filtered view, so creates (and
// bulk deletes) invalidate the whole domain+owner prefix instead.
//
// Cache maintenance happens before the call returns, giving in-process
// read-your-writes consistency. There is no cross-session consistency and no
// transactional isolation across domains.
type MutationCoordinator struct {
	cache     *cache.Store[store.Document]
	store     store.DocumentStore
	chunkSize int
	timeout   time.Duration
	events    *amqp.Publisher
}

// CreateMany commits the records in chunks of at most chunkSize, each chunk
// one atomic unit, sequentially. The first failing chunk stops the run and
// fails the call; chunks already committed remain committed. On full success
// the domain+owner prefix is invalidated and the record count returned.
func (m *MutationCoordinator) CreateMany(ctx context.Context, owner string, col core.Collection, docs []store.Document) (int, error) {
	if err := col.Validate(); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, ErrNoRecords
	}
	for i, d := range docs {
		if err := core.ValidateRecord(col, d.ID, d.Fields); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if m.store == nil {
		return 0, nil
	}

	writes := make([]store.Write, len(docs))
	for i, d := range docs {
		writes[i] = store.Write{
			Op:         store.WriteCreate,
			Collection: col,
			ID:         d.ID,
			Fields:     d.Fields,
		}
	}

	if err := m.commitChunked(ctx, owner, writes); err != nil {
		return 0, err
	}

	m.cache.Invalidate(cache.Prefix{Domain: col.Domain(), Owner: owner})
	m.publish(ctx, owner, col.Domain(), amqp.OpCreate, ids(docs))

	slog.InfoContext(ctx, "Records created",
		"owner", owner,
		"collection", col.String(),
		"count", len(docs))
	return len(docs), nil
}

// Update merges the partial fields onto the remote record, then patches
// every cached list under the prefix in place. No invalidation, no re-fetch.
func (m *MutationCoordinator) Update(ctx context.Context, owner string, col core.Collection, id string, fields map[string]any) error {
	if err := col.Validate(); err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	if len(fields) == 0 {
		return ErrNoFields
	}
	if m.store == nil {
		return nil
	}

	write := store.Write{Op: store.WriteUpdate, Collection: col, ID: id, Fields: fields}
	if err := m.commit(ctx, owner, []store.Write{write}); err != nil {
		return fmt.Errorf("update %s/%s: %w", col, id, err)
	}

	m.cache.Patch(cache.Prefix{Domain: col.Domain(), Owner: owner}, func(docs []store.Document) []store.Document {
		patched := make([]store.Document, len(docs))
		for i, d := range docs {
			if d.ID == id {
				patched[i] = d.Merge(fields)
			} else {
				patched[i] = d
			}
		}
		return patched
	})
	m.publish(ctx, owner, col.Domain(), amqp.OpUpdate, []string{id})
	return nil
}

// Delete removes the remote record, then filters it out of every cached list
// under the prefix.
func (m *MutationCoordinator) Delete(ctx context.Context, owner string, col core.Collection, id string) error {
	if err := col.Validate(); err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	if m.store == nil {
		return nil
	}

	write := store.Write{Op: store.WriteDelete, Collection: col, ID: id}
	if err := m.commit(ctx, owner, []store.Write{write}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", col, id, err)
	}

	m.cache.Patch(cache.Prefix{Domain: col.Domain(), Owner: owner}, func(docs []store.Document) []store.Document {
		kept := make([]store.Document, 0, len(docs))
		for _, d := range docs {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		return kept
	})
	m.publish(ctx, owner, col.Domain(), amqp.OpDelete, []string{id})
	return nil
}

// DeleteMany deletes the ids with the same chunking discipline as
// CreateMany. Many records disappear at once, so the prefix is invalidated
// wholesale rather than patched.
func (m *MutationCoordinator) DeleteMany(ctx context.Context, owner string, col core.Collection, recordIDs []string) (int, error) {
	if err := col.Validate(); err != nil {
		return 0, err
	}
	if len(recordIDs) == 0 {
		return 0, ErrNoRecords
	}
	for _, id := range recordIDs {
		if id == "" {
			return 0, ErrMissingID
		}
	}
	if m.store == nil {
		return 0, nil
	}

	writes := make([]store.Write, len(recordIDs))
	for i, id := range recordIDs {
		writes[i] = store.Write{Op: store.WriteDelete, Collection: col, ID: id}
	}

	if err := m.commitChunked(ctx, owner, writes); err != nil {
		return 0, err
	}

	m.cache.Invalidate(cache.Prefix{Domain: col.Domain(), Owner: owner})
	m.publish(ctx, owner, col.Domain(), amqp.OpDelete, recordIDs)

	slog.InfoContext(ctx, "Records deleted",
		"owner", owner,
		"collection", col.String(),
		"count", len(recordIDs))
	return len(recordIDs), nil
}

// DeleteAll reads the full remote collection for the owner and deletes every
// record, chunked. Destructive and non-reversible; confirming intent is the
// caller's concern.
func (m *MutationCoordinator) DeleteAll(ctx context.Context, owner string, col core.Collection) (int, error) {
	if err := col.Validate(); err != nil {
		return 0, err
	}
	if m.store == nil {
		return 0, nil
	}

	listCtx, cancel := context.WithTimeout(ctx, m.timeout)
	docs, err := m.store.List(listCtx, store.Query{
		Owner:      owner,
		Collection: col,
		Limit:      store.NoLimit,
	})
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list %s for delete-all: %w", col, err)
	}
	if len(docs) == 0 {
		m.cache.Invalidate(cache.Prefix{Domain: col.Domain(), Owner: owner})
		return 0, nil
	}

	return m.DeleteMany(ctx, owner, col, ids(docs))
}

// commitChunked partitions writes into chunks no larger than chunkSize and
// commits them sequentially, stopping at the first failure.
func (m *MutationCoordinator) commitChunked(ctx context.Context, owner string, writes []store.Write) error {
	total := (len(writes) + m.chunkSize - 1) / m.chunkSize
	for i := 0; i < len(writes); i += m.chunkSize {
		end := i + m.chunkSize
		if end > len(writes) {
			end = len(writes)
		}
		if err := m.commit(ctx, owner, writes[i:end]); err != nil {
			return fmt.Errorf("commit chunk %d/%d: %w", i/m.chunkSize+1, total, err)
		}
	}
	return nil
}

func (m *MutationCoordinator) commit(ctx context.Context, owner string, writes []store.Write) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.Commit(ctx, owner, writes)
}

// publish emits the mutation event when a publisher is configured. Publish
// failures are logged, never failed through: the write already committed.
func (m *MutationCoordinator) publish(ctx context.Context, owner string, domain core.Domain, op string, recordIDs []string) {
	if m.events == nil {
		return
	}
	msg := amqp.NewMutationMessage(owner, domain, op, recordIDs)
	if err := m.events.PublishMutation(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mutation message",
			"owner", owner,
			"domain", domain.String(),
			"op", op,
			"error", err)
	}
}

func ids(docs []store.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID != "" {
			out = append(out, d.ID)
		}
	}
	return out
}
