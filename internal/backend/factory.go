package backend

import (
	"context"
	"fmt"
	"log/slog"

	"conti/internal/store/firestore"
	"conti/internal/store/memory"
	"conti/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend()
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case FirestoreBackend:
		return f.createFirestoreBackend(ctx, config)
	case DisabledBackend:
		return f.createDisabledBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	st := memory.New()
	f.logger.Info("Initialized memory backend")
	return &Result{Store: st}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	st, err := sqlite.New(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Store:   st,
		Cleanup: st.Close,
	}, nil
}

func (f *DefaultFactory) createFirestoreBackend(ctx context.Context, config Config) (*Result, error) {
	st, err := firestore.New(ctx, firestore.Config{
		ProjectID:       config.FirestoreProjectID,
		DatabaseID:      config.FirestoreDatabaseID,
		RootCollection:  config.RootCollection,
		CredentialsFile: config.FirestoreCredentialsFile,
		CredentialsJSON: config.FirestoreCredentialsJSON,
		Endpoint:        config.FirestoreEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore store: %w", err)
	}

	f.logger.Info("Initialized Firestore backend",
		"project", config.FirestoreProjectID,
		"database", config.FirestoreDatabaseID)

	return &Result{Store: st}, nil
}

func (f *DefaultFactory) createDisabledBackend() (*Result, error) {
	// A nil store disables the data layer: reads return empty, writes
	// succeed without touching anything.
	f.logger.Info("Data backend disabled")
	return &Result{}, nil
}
