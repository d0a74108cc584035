package backend

import (
	"context"
	"time"

	"conti/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the document store and optional cleanup function. Store is
// nil for the disabled backend; the service layer treats a nil store as
// "reads empty, writes succeed without effect".
type Result struct {
	Store   store.DocumentStore
	Cleanup CleanupFunc
}

// Factory creates document stores based on configuration
type Factory interface {
	// CreateBackend creates a document store based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Firestore specific
	FirestoreProjectID       string
	FirestoreDatabaseID      string
	FirestoreCredentialsFile string
	FirestoreCredentialsJSON string
	FirestoreEndpoint        string
	RootCollection           string

	// Connection
	RemoteTimeout time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend    BackendType = "memory"
	SQLiteBackend    BackendType = "sqlite"
	FirestoreBackend BackendType = "firestore"
	DisabledBackend  BackendType = "disabled"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, FirestoreBackend, DisabledBackend:
		return true
	default:
		return false
	}
}
