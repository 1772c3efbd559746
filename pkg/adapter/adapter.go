// Package adapter defines the execution contract between the compiler and
// whatever runs its SQL. The compiler itself only produces strings; callers
// that want results pick an Executor from the registry and hand it the
// compiled statement.
package adapter

import (
	"context"

	"github.com/leapstack-labs/strata/pkg/dialect"
)

// Config carries the connection settings an Executor needs. Fields not
// relevant to a given backend stay zero.
type Config struct {
	Type string `koanf:"type"` // registry name, e.g. "postgres"

	// File-based databases.
	Database string `koanf:"database"`

	// Network databases.
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	Schema string `koanf:"schema"`

	// Options holds driver-specific settings.
	Options map[string]string `koanf:"options"`
}

// Column describes one column of an executed result.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Result is a fully materialized query result. Executors materialize
// rather than stream because compiled analytical statements aggregate
// before returning.
type Result struct {
	Columns []Column
	Rows    [][]any
}

// Executor runs compiled SQL against a concrete database.
type Executor interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Query runs a compiled statement and returns its rows.
	Query(ctx context.Context, sql string) (*Result, error)

	// Dialect returns the dialect the executor's SQL must target. Callers
	// pass its name as the compile request's Dialect.
	Dialect() *dialect.Dialect
}
