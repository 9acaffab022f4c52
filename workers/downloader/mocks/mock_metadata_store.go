package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mangadownloader/shared/application/ports"
)

// MockMetadataStore is a mock implementation of ports.MetadataStore
type MockMetadataStore struct {
	mock.Mock
}

func (m *MockMetadataStore) AddExcludedChapter(ctx context.Context, title, chapter string) error {
	args := m.Called(ctx, title, chapter)
	return args.Error(0)
}

func (m *MockMetadataStore) GetExcludedChapters(ctx context.Context, title string) (ports.ChapterSet, error) {
	args := m.Called(ctx, title)

	var set ports.ChapterSet
	if args.Get(0) != nil {
		set = args.Get(0).(ports.ChapterSet)
	}
	return set, args.Error(1)
}

func (m *MockMetadataStore) AppendMetadata(ctx context.Context, title, info string, table ports.SourceTable) error {
	args := m.Called(ctx, title, info, table)
	return args.Error(0)
}
