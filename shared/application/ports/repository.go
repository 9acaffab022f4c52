package ports

import (
	"context"
	"errors"
)

// SourceTable names the bookkeeping table a title belongs to.
type SourceTable string

const (
	TableAsuraScans  SourceTable = "asura_scans"
	TableFlameScans  SourceTable = "flame_scans"
	TableWeebCentral SourceTable = "weeb_central"
)

var ErrUnknownSourceTable = errors.New("unknown source table")

// Valid reports whether t is one of the known bookkeeping tables.
func (t SourceTable) Valid() bool {
	switch t {
	case TableAsuraScans, TableFlameScans, TableWeebCentral:
		return true
	}
	return false
}

// ChapterSet is a set of chapter identifiers.
type ChapterSet map[string]struct{}

func NewChapterSet(chapters ...string) ChapterSet {
	set := make(ChapterSet, len(chapters))
	for _, c := range chapters {
		set[c] = struct{}{}
	}
	return set
}

func (s ChapterSet) Contains(chapter string) bool {
	_, ok := s[chapter]
	return ok
}

// MetadataStore records chapter exclusions and per-title bookkeeping.
type MetadataStore interface {
	AddExcludedChapter(ctx context.Context, title, chapter string) error
	GetExcludedChapters(ctx context.Context, title string) (ChapterSet, error)
	AppendMetadata(ctx context.Context, title, info string, table SourceTable) error
}
