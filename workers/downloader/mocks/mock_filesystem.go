package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockFileSystem is a mock implementation of ports.FileSystem
type MockFileSystem struct {
	mock.Mock
}

func (m *MockFileSystem) FolderExists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileSystem) CreateFolder(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockFileSystem) HasFileAboveSize(ctx context.Context, path string, thresholdBytes int64) (bool, error) {
	args := m.Called(ctx, path, thresholdBytes)
	return args.Bool(0), args.Error(1)
}

// SanitizeFileName falls back to the identity when no expectation is set.
func (m *MockFileSystem) SanitizeFileName(name string) string {
	for _, call := range m.ExpectedCalls {
		if call.Method == "SanitizeFileName" {
			return m.Called(name).String(0)
		}
	}
	return name
}

func (m *MockFileSystem) WriteBytes(ctx context.Context, path string, data []byte) error {
	args := m.Called(ctx, path, data)
	return args.Error(0)
}

func (m *MockFileSystem) CreateExclusive(ctx context.Context, path string) (io.WriteCloser, error) {
	args := m.Called(ctx, path)

	var w io.WriteCloser
	if args.Get(0) != nil {
		w = args.Get(0).(io.WriteCloser)
	}
	return w, args.Error(1)
}
