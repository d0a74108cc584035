package store

import "errors"

var (
	// ErrNotFound reports that the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrQueryNotServable reports that the backend refused the filtered
	// query as posed, typically because a supporting index is missing. It is
	// the only error the read path retries, once, with broader predicates.
	ErrQueryNotServable = errors.New("query not servable")

	// ErrUnavailable wraps transient remote failures (network, timeouts,
	// backend unavailable).
	ErrUnavailable = errors.New("store unavailable")

	// ErrTooManyWrites reports a commit unit above MaxWritesPerCommit.
	// Seeing it means a caller skipped chunking.
	ErrTooManyWrites = errors.New("too many writes in one commit")
)
