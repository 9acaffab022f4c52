package sqlxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mangadownloader/shared/application/ports"
)

// DB implements ports.Database on top of an sqlx connection. The postgres
// and sqlite adapters only differ in how they open it.
type DB struct {
	conn    *sqlx.DB
	logger  ports.Logger
	metrics ports.Metrics
}

// Wrap takes ownership of conn.
func Wrap(conn *sqlx.DB, logger ports.Logger, metrics ports.Metrics) *DB {
	return &DB{
		conn:    conn,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs a query that doesn't return rows
func (d *DB) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	startTime := time.Now()

	result, err := d.conn.ExecContext(ctx, query, args...)

	d.recordMetrics("execute", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to execute query", "error", err, "query", query)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	return result, nil
}

// Select scans every returned row into dest, which must be a slice pointer.
func (d *DB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	startTime := time.Now()

	err := d.conn.SelectContext(ctx, dest, query, args...)

	d.recordMetrics("select", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to select rows", "error", err, "query", query)
		return fmt.Errorf("failed to select rows: %w", err)
	}

	return nil
}

// Get scans a single row into dest. sql.ErrNoRows is returned wrapped.
func (d *DB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	startTime := time.Now()

	err := d.conn.GetContext(ctx, dest, query, args...)

	d.recordMetrics("get", time.Since(startTime), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			d.logger.Info("No rows found", "query", query)
		} else {
			d.logger.Error("Failed to get row", "error", err, "query", query)
		}
		return fmt.Errorf("failed to get row: %w", err)
	}

	return nil
}

func (d *DB) DriverName() string {
	return d.conn.DriverName()
}

// Ping verifies the connection
func (d *DB) Ping(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	d.logger.Info("Closing database connection", "driver", d.conn.DriverName())
	return d.conn.Close()
}

func (d *DB) recordMetrics(operation string, duration time.Duration, err error) {
	tags := map[string]string{"driver": d.conn.DriverName()}

	d.metrics.RecordHistogram(fmt.Sprintf("database.%s.duration_ms", operation), float64(duration.Milliseconds()), tags)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		d.metrics.IncrementCounter(fmt.Sprintf("database.%s.errors", operation), tags)
	} else {
		d.metrics.IncrementCounter(fmt.Sprintf("database.%s.success", operation), tags)
	}
}
