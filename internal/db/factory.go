package db

import (
	"fmt"
	"strings"

	"agentwatch/internal/telemetry"
)

// DefaultSQLitePath is used when the sqlite backend has no DSN configured.
const DefaultSQLitePath = ".agentwatch.db"

// StoreConfig holds configuration for the storage backend
type StoreConfig struct {
	Type             string // "sqlite", "postgres" or "none"
	ConnectionString string // File path for SQLite, DSN for Postgres
}

// NewStore creates a new Store instance based on the provided configuration.
// Type "none" disables history and returns a nil Store with no error.
func NewStore(config StoreConfig) (Store, error) {
	switch strings.ToLower(config.Type) {
	case "none", "off", "disabled":
		telemetry.LogInfo("alert history disabled", "type", config.Type)
		return nil, nil
	case "postgres", "postgresql":
		if config.ConnectionString == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		store, err := NewPostgresStore(config.ConnectionString)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite", "sqlite3", "":
		if config.ConnectionString == "" {
			config.ConnectionString = DefaultSQLitePath
		}
		store, err := NewSQLiteStore(config.ConnectionString)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
