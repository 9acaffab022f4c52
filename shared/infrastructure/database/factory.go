package database

import (
	"fmt"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/database/adapters/postgres"
	"mangadownloader/shared/infrastructure/database/adapters/sqlite"
)

// CreateDatabase opens the database selected in cfg.
func CreateDatabase(cfg *config.Config, obs ports.Observability) (ports.Database, error) {
	logger, err := obs.LoggerScoped("database.factory")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger from observability: %w", err)
	}

	switch cfg.Adapters.Database {
	case "postgres":
		logger.Info("Creating PostgreSQL database connection")
		return postgres.New(&cfg.Database, obs)
	case "sqlite":
		logger.Info("Creating SQLite database connection", "path", cfg.Database.SQLitePath)
		return sqlite.New(cfg.Database.SQLitePath, obs)
	default:
		return nil, fmt.Errorf("unsupported database adapter: %s", cfg.Adapters.Database)
	}
}
