package ports

import (
	"context"
	"database/sql"
)

// Database represents a database connection
type Database interface {
	// Execute runs a query that doesn't return rows
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// DriverName reports the registered sql driver, used to pick placeholders
	DriverName() string

	// Ping verifies the connection
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}
