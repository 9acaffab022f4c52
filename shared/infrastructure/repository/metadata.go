package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"mangadownloader/shared/application/ports"
)

const excludeTable = "exclude_manga"

// MetadataRepository implements ports.MetadataStore.
type MetadataRepository struct {
	*baseRepository
	now func() time.Time
}

var _ ports.MetadataStore = (*MetadataRepository)(nil)

func newMetadataRepository(db ports.Database, logger ports.Logger, metrics ports.Metrics) *MetadataRepository {
	return &MetadataRepository{
		baseRepository: newBaseRepository(db, logger, metrics),
		now:            time.Now,
	}
}

// AddExcludedChapter marks chapter as excluded for title. Existing pairs are
// left untouched.
func (r *MetadataRepository) AddExcludedChapter(ctx context.Context, title, chapter string) error {
	r.logger.Info("Checking exclusion", "title", title, "chapter", chapter)

	var existing int64
	err := r.get(ctx, "exclusion.count", &existing, r.qb.
		Select("COUNT(1)").
		From(excludeTable).
		Where(squirrel.Eq{"manga_title": title, "chapter": chapter}))
	if err != nil {
		return err
	}

	if existing > 0 {
		r.logger.Info("Exclusion already recorded, skipping insert", "title", title, "chapter", chapter)
		return nil
	}

	_, err = r.exec(ctx, "exclusion.insert", r.qb.
		Insert(excludeTable).
		Columns("manga_title", "chapter").
		Values(title, chapter))
	if err != nil {
		return err
	}

	r.logger.Info("Inserted exclusion record", "title", title, "chapter", chapter)
	return nil
}

// GetExcludedChapters returns every excluded chapter of title, possibly none.
func (r *MetadataRepository) GetExcludedChapters(ctx context.Context, title string) (ports.ChapterSet, error) {
	var chapters []string
	err := r.list(ctx, "exclusion.list", &chapters, r.qb.
		Select("chapter").
		From(excludeTable).
		Where(squirrel.Eq{"manga_title": title}))
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Retrieved excluded chapters", "title", title, "count", len(chapters))
	return ports.NewChapterSet(chapters...), nil
}

// AppendMetadata tidies the title's extra information and appends info to it.
// Titles without a row are left as they are.
func (r *MetadataRepository) AppendMetadata(ctx context.Context, title, info string, table ports.SourceTable) error {
	if !table.Valid() {
		return fmt.Errorf("%w: %q", ports.ErrUnknownSourceTable, table)
	}

	r.logger.Info("Appending extra information", "title", title, "info", info, "table", string(table))

	_, err := r.exec(ctx, "metadata.clean", r.qb.
		Update(string(table)).
		Set("extra_information", squirrel.Expr("REPLACE(extra_information, ',,', ',')")).
		Where(squirrel.Eq{"title": title}))
	if err != nil {
		return err
	}

	result, err := r.exec(ctx, "metadata.append", r.qb.
		Update(string(table)).
		Set("last_updated", r.now().UTC()).
		Set("extra_information", squirrel.Expr("COALESCE(extra_information, '') || ?", info+",")).
		Where(squirrel.Eq{"title": title}))
	if err != nil {
		return err
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		r.logger.Warn("No bookkeeping row for title", "title", title, "table", string(table))
	}
	return nil
}
