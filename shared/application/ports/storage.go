package ports

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrFileLocked is returned when another writer holds the target file.
	ErrFileLocked = errors.New("file is locked by another writer")

	// ErrOutsideRoot is returned for paths that escape the configured root.
	ErrOutsideRoot = errors.New("path is outside the storage root")
)

// FileSystem is the gateway the download pipeline persists pages through.
// Paths are absolute, slash separated destination paths as they arrive in
// job messages.
type FileSystem interface {
	FolderExists(ctx context.Context, path string) (bool, error)

	// CreateFolder creates path and any missing parents.
	CreateFolder(ctx context.Context, path string) error

	// HasFileAboveSize reports whether any file directly inside path is
	// strictly larger than thresholdBytes. A missing folder reports false.
	HasFileAboveSize(ctx context.Context, path string, thresholdBytes int64) (bool, error)

	SanitizeFileName(name string) string

	// WriteBytes writes data to path, creating the parent directory and
	// overwriting any existing file.
	WriteBytes(ctx context.Context, path string, data []byte) error

	// CreateExclusive opens path for writing, truncating it, while holding an
	// exclusive lock until the writer is closed.
	CreateExclusive(ctx context.Context, path string) (io.WriteCloser, error)
}
