// Package graph provides database abstraction for the lifecycle event
// graph. High-level packages depend on the Driver interface, not on a
// concrete database client.
package graph

import (
	"context"

	"github.com/fedbook/fedbook/internal/config"
)

// Record represents a single result row from a query.
type Record map[string]any

// Driver defines the interface for graph database operations.
type Driver interface {
	// Execute runs a Cypher read query and returns results.
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)

	// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
}

// DefaultConfig returns configuration from the environment.
func DefaultConfig() Config {
	env := config.Env()
	return Config{
		URI:      env.Neo4jURI,
		Username: env.Neo4jUser,
		Password: env.Neo4jPassword,
	}
}
