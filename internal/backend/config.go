package backend

import (
	"fmt"

	"conti/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		FirestoreProjectID:       appConfig.FirestoreProjectID,
		FirestoreDatabaseID:      appConfig.FirestoreDatabaseID,
		FirestoreCredentialsFile: appConfig.FirestoreCredentialsFile,
		FirestoreCredentialsJSON: appConfig.FirestoreCredentialsJSON,
		FirestoreEndpoint:        appConfig.FirestoreEndpoint,
		RootCollection:           appConfig.RootCollection,

		RemoteTimeout: appConfig.RemoteTimeout,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case FirestoreBackend:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("Firestore project ID is required for firestore backend")
		}
		hasFile := c.FirestoreCredentialsFile != ""
		hasJSON := c.FirestoreCredentialsJSON != ""
		if c.FirestoreEndpoint == "" && !hasFile && !hasJSON {
			return fmt.Errorf("either FirestoreCredentialsFile or FirestoreCredentialsJSON must be provided for firestore backend")
		}

	case MemoryBackend, DisabledBackend:
		// No additional configuration required.
	}

	return nil
}

// Types returns all valid backend types
func Types() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, FirestoreBackend, DisabledBackend}
}
