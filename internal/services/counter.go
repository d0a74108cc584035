package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/store"
)

// CounterService increments numeric fields without a read-modify-write race,
// for counters like "amount saved toward a goal" or a tag's usage count.
type CounterService struct {
	cache   *cache.Store[store.Document]
	store   store.DocumentStore
	timeout time.Duration
	events  *amqp.Publisher
}

// Increment existence-checks the record, applies a native atomic increment,
// reads the record back for the authoritative value and patches cached lists
// in place. Incrementing a missing record fails with store.ErrNotFound and
// performs no write; a malformed record must never materialize out of an
// increment.
//
// The check-then-increment pair is not compare-and-swap: a concurrent delete
// can land between the two. The window is accepted and documented rather
// than guarded with a transaction.
func (c *CounterService) Increment(ctx context.Context, owner string, col core.Collection, id, field string, delta int64) (int64, error) {
	if err := col.Validate(); err != nil {
		return 0, err
	}
	if id == "" {
		return 0, ErrMissingID
	}
	if field == "" {
		return 0, ErrNoFields
	}
	if c.store == nil {
		return 0, nil
	}

	if _, err := c.get(ctx, owner, col, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("increment %s/%s: %w", col, id, store.ErrNotFound)
		}
		return 0, fmt.Errorf("increment %s/%s: existence check: %w", col, id, err)
	}

	incCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.store.Increment(incCtx, owner, col, id, field, delta)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s: %w", col, id, err)
	}

	doc, err := c.get(ctx, owner, col, id)
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s: read back: %w", col, id, err)
	}
	newValue := doc.Int64Field(field)

	c.cache.Patch(cache.Prefix{Domain: col.Domain(), Owner: owner}, func(docs []store.Document) []store.Document {
		patched := make([]store.Document, len(docs))
		for i, d := range docs {
			if d.ID == id {
				patched[i] = d.Merge(map[string]any{field: newValue})
			} else {
				patched[i] = d
			}
		}
		return patched
	})

	if c.events != nil {
		msg := amqp.NewMutationMessage(owner, col.Domain(), amqp.OpIncrement, []string{id})
		if err := c.events.PublishMutation(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish mutation message",
				"owner", owner,
				"domain", col.Domain().String(),
				"op", amqp.OpIncrement,
				"error", err)
		}
	}

	slog.DebugContext(ctx, "Counter incremented",
		"owner", owner,
		"collection", col.String(),
		"id", id,
		"field", field,
		"delta", delta,
		"new_value", newValue)
	return newValue, nil
}

func (c *CounterService) get(ctx context.Context, owner string, col core.Collection, id string) (store.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.Get(ctx, owner, col, id)
}
