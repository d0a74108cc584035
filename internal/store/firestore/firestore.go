// Package firestore adapts Google Cloud Firestore to the document store
// port over its REST surface. Authentication reuses the service-account
// options from google.golang.org/api; the wire payloads are written by hand
// because the commit semantics this layer depends on (field-mask merges,
// exists preconditions, increment transforms) are easier to audit that way.
//
// A ranged, ordered query that lacks a composite index fails with
// FAILED_PRECONDITION, which this adapter maps to store.ErrQueryNotServable
// on the read path so the executor can retry broad. The same status on a
// write means an exists precondition failed, which maps to store.ErrNotFound.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"conti/internal/core"
	"conti/internal/store"
)

const (
	defaultEndpoint = "https://firestore.googleapis.com"
	datastoreScope  = "https://www.googleapis.com/auth/datastore"
)

// Config holds the Firestore connection settings.
type Config struct {
	ProjectID string

	// DatabaseID defaults to the "(default)" database.
	DatabaseID string

	// RootCollection is the top-level collection owners live under,
	// "users" unless overridden.
	RootCollection string

	// Service-account credentials, inline JSON or a file path. Exactly like
	// the rest of the Google stack: JSON wins when both are set.
	CredentialsJSON string
	CredentialsFile string

	// Endpoint overrides the API endpoint, for the emulator and tests.
	// When set, requests are unauthenticated.
	Endpoint string
}

type Store struct {
	hc       *http.Client
	endpoint string
	database string // projects/<p>/databases/<db>
	root     string // root collection id
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("missing Firestore project id")
	}
	database := cfg.DatabaseID
	if database == "" {
		database = "(default)"
	}
	root := cfg.RootCollection
	if root == "" {
		root = "users"
	}

	endpoint := defaultEndpoint
	var hc *http.Client
	if cfg.Endpoint != "" {
		endpoint = strings.TrimRight(cfg.Endpoint, "/")
		hc = http.DefaultClient
	} else {
		opts := []option.ClientOption{option.WithScopes(datastoreScope)}
		switch {
		case cfg.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		client, _, err := htransport.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create firestore http client: %w", err)
		}
		hc = client
	}

	return &Store{
		hc:       hc,
		endpoint: endpoint,
		database: fmt.Sprintf("projects/%s/databases/%s", cfg.ProjectID, database),
		root:     root,
	}, nil
}

// List implements store.DocumentStore via documents:runQuery.
func (s *Store) List(ctx context.Context, q store.Query) ([]store.Document, error) {
	parent, collectionID := s.queryParent(q.Owner, q.Collection)

	sq := structuredQuery{
		From: []collectionSelector{{CollectionID: collectionID}},
		OrderBy: []queryOrder{
			{Field: fieldReference{FieldPath: core.FieldDate}, Direction: "DESCENDING"},
			{Field: fieldReference{FieldPath: "__name__"}, Direction: "DESCENDING"},
		},
	}

	var filters []queryFilter
	if q.StartDate != "" {
		filters = append(filters, rangeFilter("GREATER_THAN_OR_EQUAL", q.StartDate))
	}
	if q.EndDate != "" {
		filters = append(filters, rangeFilter("LESS_THAN_OR_EQUAL", q.EndDate))
	}
	switch len(filters) {
	case 0:
	case 1:
		sq.Where = &filters[0]
	default:
		sq.Where = &queryFilter{CompositeFilter: &compositeFilter{Op: "AND", Filters: filters}}
	}

	limit := q.Limit
	if limit == 0 {
		limit = store.DefaultLimit
	}
	if limit > 0 {
		sq.Limit = &limit
	}

	var responses []runQueryResponse
	err := s.do(ctx, http.MethodPost,
		s.docURL(parent)+":runQuery",
		runQueryRequest{StructuredQuery: sq},
		&responses,
		false,
	)
	if err != nil {
		return nil, err
	}

	var out []store.Document
	for _, r := range responses {
		if r.Document == nil {
			continue
		}
		out = append(out, store.Document{
			ID:     docID(r.Document.Name),
			Fields: fromWireFields(r.Document.Fields),
		})
	}
	return out, nil
}

// Get implements store.DocumentStore.
func (s *Store) Get(ctx context.Context, owner string, col core.Collection, id string) (store.Document, error) {
	name := s.docName(owner, col, id)
	var doc wireDocument
	if err := s.do(ctx, http.MethodGet, s.docURL(name), nil, &doc, false); err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: docID(doc.Name), Fields: fromWireFields(doc.Fields)}, nil
}

// Commit implements store.DocumentStore via documents:commit, one atomic
// unit per call.
func (s *Store) Commit(ctx context.Context, owner string, writes []store.Write) error {
	if len(writes) > store.MaxWritesPerCommit {
		return fmt.Errorf("%w: %d > %d", store.ErrTooManyWrites, len(writes), store.MaxWritesPerCommit)
	}

	req := commitRequest{Writes: make([]wireWrite, 0, len(writes))}
	exists := true
	for _, w := range writes {
		switch w.Op {
		case store.WriteCreate:
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			req.Writes = append(req.Writes, wireWrite{
				Update: &wireDocument{
					Name:   s.docName(owner, w.Collection, id),
					Fields: toWireFields(w.Fields),
				},
			})
		case store.WriteUpdate:
			mask := make([]string, 0, len(w.Fields))
			for k := range w.Fields {
				mask = append(mask, k)
			}
			req.Writes = append(req.Writes, wireWrite{
				Update: &wireDocument{
					Name:   s.docName(owner, w.Collection, w.ID),
					Fields: toWireFields(w.Fields),
				},
				UpdateMask:      &documentMask{FieldPaths: mask},
				CurrentDocument: &precondition{Exists: &exists},
			})
		case store.WriteDelete:
			req.Writes = append(req.Writes, wireWrite{
				Delete: s.docName(owner, w.Collection, w.ID),
			})
		}
	}

	return s.do(ctx, http.MethodPost, s.docURL(s.database+"/documents")+":commit", req, nil, true)
}

// Increment implements store.DocumentStore with a field transform, the
// server-side increment that makes concurrent deltas add up instead of
// clobbering each other. The exists precondition keeps an increment from
// materializing a document.
func (s *Store) Increment(ctx context.Context, owner string, col core.Collection, id, field string, delta int64) error {
	exists := true
	inc := toWireValue(delta)
	req := commitRequest{Writes: []wireWrite{{
		Transform: &documentTransform{
			Document: s.docName(owner, col, id),
			FieldTransforms: []fieldTransform{
				{FieldPath: field, Increment: &inc},
			},
		},
		CurrentDocument: &precondition{Exists: &exists},
	}}}

	return s.do(ctx, http.MethodPost, s.docURL(s.database+"/documents")+":commit", req, nil, true)
}

// docName builds the full resource name of a record:
// projects/<p>/databases/<db>/documents/<root>/<owner>/<collection...>/<id>
func (s *Store) docName(owner string, col core.Collection, id string) string {
	return fmt.Sprintf("%s/documents/%s/%s/%s/%s", s.database, s.root, owner, col, id)
}

// queryParent splits a collection path into the parent document runQuery
// expects and the leaf collection id.
func (s *Store) queryParent(owner string, col core.Collection) (parent, collectionID string) {
	base := fmt.Sprintf("%s/documents/%s/%s", s.database, s.root, owner)
	segments := strings.Split(string(col), "/")
	if len(segments) == 1 {
		return base, segments[0]
	}
	return base + "/" + strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1]
}

func (s *Store) docURL(name string) string {
	return s.endpoint + "/v1/" + name
}

func docID(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func rangeFilter(op, date string) queryFilter {
	return queryFilter{FieldFilter: &fieldFilter{
		Field: fieldReference{FieldPath: core.FieldDate},
		Op:    op,
		Value: toWireValue(date),
	}}
}

// do performs one REST call and decodes the response into out when non-nil.
// write selects the error mapping for commit-path calls.
func (s *Store) do(ctx context.Context, method, rawURL string, body, out any, write bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
		return fmt.Errorf("firestore request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", store.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapAPIError(resp.StatusCode, data, write)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// mapAPIError converts Firestore's error envelope to the shared taxonomy.
func mapAPIError(statusCode int, data []byte, write bool) error {
	var apiErr apiError
	_ = json.Unmarshal(data, &apiErr)
	status := apiErr.Error.Status
	message := apiErr.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(data))
	}

	switch {
	case status == "FAILED_PRECONDITION" && write:
		// The exists precondition failed: the target record is gone.
		return fmt.Errorf("%w: %s", store.ErrNotFound, message)
	case status == "FAILED_PRECONDITION":
		// Missing composite index for the ranged, ordered query.
		return fmt.Errorf("%w: %s", store.ErrQueryNotServable, message)
	case statusCode == http.StatusNotFound:
		return store.ErrNotFound
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return fmt.Errorf("%w: %s (%d)", store.ErrUnavailable, message, statusCode)
	default:
		return fmt.Errorf("firestore: %s (%d %s)", message, statusCode, status)
	}
}
