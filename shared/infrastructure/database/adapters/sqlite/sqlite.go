package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/database/adapters/sqlxdb"
)

// DriverName is the name modernc.org/sqlite registers with database/sql.
const DriverName = "sqlite"

// New opens the database file at path, creating its directory when needed.
// The pool is capped at one connection so writers never see SQLITE_BUSY.
func New(path string, obs ports.Observability) (*sqlxdb.DB, error) {
	logger, metrics, err := obs.ComponentsScoped("database.sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info("Opening SQLite database", "path", path)

	conn, err := sqlx.Open(DriverName, dsn(path))
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", path)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	metrics.IncrementCounter("database.connection.success", map[string]string{"type": "sqlite"})

	return sqlxdb.Wrap(conn, logger, metrics), nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
