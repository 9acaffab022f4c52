package repository

import (
	"context"
	"fmt"

	"mangadownloader/shared/application/ports"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS exclude_manga (
		manga_title TEXT NOT NULL,
		chapter     TEXT NOT NULL,
		PRIMARY KEY (manga_title, chapter)
	)`,
}

func titleTableDDL(table ports.SourceTable) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		title             TEXT PRIMARY KEY,
		extra_information TEXT NOT NULL DEFAULT '',
		last_updated      TIMESTAMP
	)`, table)
}

// Migrate creates the bookkeeping tables when they are missing.
func Migrate(ctx context.Context, db ports.Database, logger ports.Logger) error {
	statements := append([]string{}, schema...)
	for _, table := range []ports.SourceTable{ports.TableAsuraScans, ports.TableFlameScans, ports.TableWeebCentral} {
		statements = append(statements, titleTableDDL(table))
	}

	for _, stmt := range statements {
		if _, err := db.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	logger.Info("Database schema is up to date", "driver", db.DriverName())
	return nil
}
