// Package sqlite backs the document store with a local SQLite file. Records
// live as JSON payloads with the date and category mirrored into columns so
// the read path can filter and order server-side; every filtered query is
// servable here, so the fallback path never triggers on this backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"conti/internal/core"
	"conti/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// List implements store.DocumentStore.
func (s *Store) List(ctx context.Context, q store.Query) ([]store.Document, error) {
	query := `SELECT id, payload FROM documents WHERE owner = ? AND collection = ?`
	args := []any{q.Owner, string(q.Collection)}

	if q.StartDate != "" {
		query += ` AND date >= ?`
		args = append(args, q.StartDate)
	}
	if q.EndDate != "" {
		query += ` AND date <= ?`
		args = append(args, q.EndDate)
	}

	query += ` ORDER BY date DESC, id DESC LIMIT ?`
	limit := q.Limit
	if limit == 0 {
		limit = store.DefaultLimit
	}
	// SQLite treats a negative LIMIT as unbounded, matching store.NoLimit.
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Get implements store.DocumentStore.
func (s *Store) Get(ctx context.Context, owner string, col core.Collection, id string) (store.Document, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE owner = ? AND collection = ? AND id = ?`,
		owner, string(col), id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get document: %w", err)
	}
	return decodeDocument(id, payload)
}

// Commit implements store.DocumentStore. All writes run inside one
// transaction, so a failing write rolls the whole unit back.
func (s *Store) Commit(ctx context.Context, owner string, writes []store.Write) error {
	if len(writes) > store.MaxWritesPerCommit {
		return fmt.Errorf("%w: %d > %d", store.ErrTooManyWrites, len(writes), store.MaxWritesPerCommit)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		switch w.Op {
		case store.WriteCreate:
			if err := s.create(ctx, tx, owner, w); err != nil {
				return err
			}
		case store.WriteUpdate:
			if err := s.update(ctx, tx, owner, w); err != nil {
				return err
			}
		case store.WriteDelete:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE owner = ? AND collection = ? AND id = ?`,
				owner, string(w.Collection), w.ID,
			); err != nil {
				return fmt.Errorf("delete %s/%s: %w", w.Collection, w.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit writes: %w", err)
	}

	slog.DebugContext(ctx, "Commit applied", "owner", owner, "writes", len(writes))
	return nil
}

// Increment implements store.DocumentStore. The JSON1 update is a single
// statement, so concurrent increments never clobber each other.
func (s *Store) Increment(ctx context.Context, owner string, col core.Collection, id, field string, delta int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		 SET payload = json_set(payload, '$.' || ?1, COALESCE(json_extract(payload, '$.' || ?1), 0) + ?2),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE owner = ?3 AND collection = ?4 AND id = ?5`,
		field, delta, owner, string(col), id,
	)
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", col, id, field, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) create(ctx context.Context, tx *sql.Tx, owner string, w store.Write) error {
	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}
	payload, err := json.Marshal(w.Fields)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", w.Collection, id, err)
	}
	date, _ := w.Fields[core.FieldDate].(string)
	category, _ := w.Fields[core.FieldCategory].(string)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (owner, collection, id, date, category, payload)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner, collection, id) DO UPDATE SET
		     date = excluded.date,
		     category = excluded.category,
		     payload = excluded.payload,
		     updated_at = CURRENT_TIMESTAMP`,
		owner, string(w.Collection), id, date, category, payload,
	)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", w.Collection, id, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, tx *sql.Tx, owner string, w store.Write) error {
	var payload []byte
	err := tx.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE owner = ? AND collection = ? AND id = ?`,
		owner, string(w.Collection), w.ID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s/%s for update: %w", w.Collection, w.ID, err)
	}

	existing, err := decodeDocument(w.ID, payload)
	if err != nil {
		return err
	}
	merged := existing.Merge(w.Fields)

	next, err := json.Marshal(merged.Fields)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", w.Collection, w.ID, err)
	}
	date, _ := merged.Fields[core.FieldDate].(string)
	category, _ := merged.Fields[core.FieldCategory].(string)

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET date = ?, category = ?, payload = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE owner = ? AND collection = ? AND id = ?`,
		date, category, next, owner, string(w.Collection), w.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, err)
	}
	return nil
}

func decodeDocument(id string, payload []byte) (store.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return store.Document{}, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return store.Document{ID: id, Fields: fields}, nil
}
