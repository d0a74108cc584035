package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/store"
)

// QueryOptions carries the read-path filter parameters. StartDate and
// EndDate are an inclusive range on the date field; Category is applied
// client-side. The cache is consulted unless SkipCache is set.
type QueryOptions struct {
	StartDate string
	EndDate   string
	Category  string
	Limit     int
	SkipCache bool
}

// QueryExecutor serves filtered reads cache-first and keeps the UI degrading
// gracefully: remote failures on this path never surface as errors.
type QueryExecutor struct {
	cache   *cache.Store[store.Document]
	store   store.DocumentStore
	timeout time.Duration
	group   *singleflight.Group
}

// Query returns the records for owner+collection matching the options.
//
// Cache hit: zero remote calls. Cache miss: one remote read (two when the
// backend reports the filtered query as not servable, see fallback below),
// result cached under the namespaced key. Transient remote failures degrade
// to the last good cached value even if expired, else to an empty list.
func (e *QueryExecutor) Query(ctx context.Context, owner string, col core.Collection, opts QueryOptions) []store.Document {
	if e.store == nil {
		return []store.Document{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = store.DefaultLimit
	}
	q := store.Query{
		Owner:      owner,
		Collection: col,
		StartDate:  opts.StartDate,
		EndDate:    opts.EndDate,
		Category:   opts.Category,
		Limit:      limit,
	}
	key := cache.NewKey(col.Domain(), owner,
		cache.QuerySignature(opts.StartDate, opts.EndDate, opts.Category, limit))

	var (
		stale    []store.Document
		hasStale bool
	)
	if !opts.SkipCache {
		payload, fresh, ok := e.cache.Lookup(key)
		if ok && fresh {
			return payload
		}
		if ok {
			stale, hasStale = payload, true
		}
	}

	docs, err := e.fetch(ctx, key, q)
	if err != nil {
		slog.WarnContext(ctx, "Remote read failed, degrading",
			"owner", owner,
			"collection", col.String(),
			"stale_available", hasStale,
			"error", err)
		if hasStale {
			return stale
		}
		return []store.Document{}
	}

	e.cache.Set(key, docs)
	return docs
}

// fetch issues the remote read, coalescing identical in-flight queries when
// configured to.
func (e *QueryExecutor) fetch(ctx context.Context, key cache.Key, q store.Query) ([]store.Document, error) {
	if e.group == nil {
		return e.fetchRemote(ctx, q)
	}
	v, err, _ := e.group.Do(key.Encode(), func() (any, error) {
		return e.fetchRemote(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return v.([]store.Document), nil
}

// fetchRemote reads from the store, retrying exactly once with the range
// predicates removed when the backend reports the filtered query as not
// servable, then applies the query predicates in memory. The residual
// category filter is applied on every path.
func (e *QueryExecutor) fetchRemote(ctx context.Context, q store.Query) ([]store.Document, error) {
	docs, err := e.list(ctx, q)
	if err != nil {
		if !errors.Is(err, store.ErrQueryNotServable) || !q.HasRange() {
			return nil, err
		}
		slog.WarnContext(ctx, "Filtered query not servable, retrying broad",
			"owner", q.Owner,
			"collection", q.Collection.String(),
			"start_date", q.StartDate,
			"end_date", q.EndDate)
		docs, err = e.list(ctx, q.WithoutRange())
		if err != nil {
			return nil, err
		}
	}

	filtered := docs[:0:len(docs)]
	for _, d := range docs {
		if q.Matches(d) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (e *QueryExecutor) list(ctx context.Context, q store.Query) ([]store.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.List(ctx, q)
}
