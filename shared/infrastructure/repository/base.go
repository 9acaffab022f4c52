package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"mangadownloader/shared/application/ports"
)

type baseRepository struct {
	db      ports.Database
	logger  ports.Logger
	metrics ports.Metrics
	qb      squirrel.StatementBuilderType
}

func newBaseRepository(db ports.Database, logger ports.Logger, metrics ports.Metrics) *baseRepository {
	return &baseRepository{
		db:      db,
		logger:  logger,
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(placeholderFor(db.DriverName())),
	}
}

// placeholderFor picks $n for postgres and ? for everything else.
func placeholderFor(driver string) squirrel.PlaceholderFormat {
	if driver == "postgres" {
		return squirrel.Dollar
	}
	return squirrel.Question
}

func (r *baseRepository) exec(ctx context.Context, op string, query squirrel.Sqlizer) (sql.Result, error) {
	r.metrics.IncrementCounter(fmt.Sprintf("repository.%s", op), nil)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Execute(ctx, sqlQuery, args...)
	if err != nil {
		r.metrics.IncrementCounter("repository.errors", map[string]string{"op": op})
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (r *baseRepository) get(ctx context.Context, op string, dest interface{}, query squirrel.Sqlizer) error {
	r.metrics.IncrementCounter(fmt.Sprintf("repository.%s", op), nil)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := r.db.Get(ctx, dest, sqlQuery, args...); err != nil {
		r.metrics.IncrementCounter("repository.errors", map[string]string{"op": op})
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *baseRepository) list(ctx context.Context, op string, dest interface{}, query squirrel.Sqlizer) error {
	r.metrics.IncrementCounter(fmt.Sprintf("repository.%s", op), nil)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := r.db.Select(ctx, dest, sqlQuery, args...); err != nil {
		r.metrics.IncrementCounter("repository.errors", map[string]string{"op": op})
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
