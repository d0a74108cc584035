package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Firestore
	FirestoreProjectID       string
	FirestoreDatabaseID      string
	FirestoreCredentialsFile string
	FirestoreCredentialsJSON string
	FirestoreEndpoint        string

	// Remote document layout
	RootCollection string

	// Cache
	CacheTTL      time.Duration
	CacheCapacity int

	// Mutations
	ChunkSize     int
	RemoteTimeout time.Duration
	CoalesceReads bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/conti.db"),

		FirestoreProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreDatabaseID:      getEnv("FIRESTORE_DATABASE_ID", "(default)"),
		FirestoreCredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),
		FirestoreCredentialsJSON: getEnv("FIRESTORE_CREDENTIALS_JSON", ""),
		FirestoreEndpoint:        getEnv("FIRESTORE_ENDPOINT", ""),

		RootCollection: getEnv("ROOT_COLLECTION", "users"),

		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheCapacity: getEnvInt("CACHE_CAPACITY", 50),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 450),
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
		CoalesceReads: getEnvBool("COALESCE_READS", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "conti"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mutation_events"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "firestore", "disabled"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate Firestore configuration if backend is firestore
	if c.DataBackend == "firestore" {
		if c.FirestoreProjectID == "" {
			errors = append(errors, "Firestore project ID is required when using firestore backend")
		}

		// The emulator endpoint needs no credentials; otherwise one of the
		// two credential sources must be set.
		hasCredentialsFile := c.FirestoreCredentialsFile != ""
		hasCredentialsJSON := c.FirestoreCredentialsJSON != ""
		if c.FirestoreEndpoint == "" && !hasCredentialsFile && !hasCredentialsJSON {
			errors = append(errors, "either FIRESTORE_CREDENTIALS_FILE or FIRESTORE_CREDENTIALS_JSON must be provided for firestore backend")
		}

		if hasCredentialsFile {
			if _, err := os.Stat(c.FirestoreCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Firestore credentials file does not exist: %s", c.FirestoreCredentialsFile))
			}
		}
	}

	if c.RootCollection == "" {
		errors = append(errors, "root collection cannot be empty")
	}

	// Validate cache configuration
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheCapacity < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache capacity %d: must be at least 1", c.CacheCapacity))
	}

	// Validate mutation configuration
	if c.ChunkSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid chunk size %d: must be at least 1", c.ChunkSize))
	} else if c.ChunkSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid chunk size %d: must be at most 500", c.ChunkSize))
	}

	if c.RemoteTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be at least 1 second", c.RemoteTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
