package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/utils"
)

// Gateway implements ports.FileSystem on the local filesystem.
type Gateway struct {
	root    string
	logger  ports.Logger
	metrics ports.Metrics
}

// NewGateway creates a filesystem gateway. When root is non-empty every
// path must resolve inside it.
func NewGateway(root string, obs ports.Observability) (*Gateway, error) {
	logger, metrics, err := obs.ComponentsScoped("storage.filesystem")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve storage root %q: %w", root, err)
		}
		root = abs
	}

	logger.Info("Filesystem storage initialized", "root", root)
	return &Gateway{root: root, logger: logger, metrics: metrics}, nil
}

func (g *Gateway) FolderExists(ctx context.Context, path string) (bool, error) {
	resolved, err := g.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(resolved)
	switch {
	case err == nil:
		return info.IsDir(), nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", resolved, err)
	}
}

func (g *Gateway) CreateFolder(ctx context.Context, path string) error {
	resolved, err := g.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(resolved, 0755); err != nil {
		g.logger.Error("Failed to create folder", "path", resolved, "error", err)
		g.metrics.IncrementCounter("storage.mkdir.errors", nil)
		return fmt.Errorf("failed to create folder %s: %w", resolved, err)
	}

	g.logger.Info("Folder created", "path", resolved)
	return nil
}

// HasFileAboveSize only looks at regular files directly inside path.
func (g *Gateway) HasFileAboveSize(ctx context.Context, path string, thresholdBytes int64) (bool, error) {
	resolved, err := g.resolve(path)
	if err != nil {
		return false, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to list %s: %w", resolved, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return false, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		if info.Size() > thresholdBytes {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) SanitizeFileName(name string) string {
	return utils.SanitizeFileName(name)
}

func (g *Gateway) WriteBytes(ctx context.Context, path string, data []byte) error {
	startTime := time.Now()

	resolved, err := g.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		g.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "mkdir"})
		return fmt.Errorf("failed to create parent folder: %w", err)
	}

	if err := os.WriteFile(resolved, data, 0644); err != nil {
		g.logger.Error("Failed to write file", "path", resolved, "error", err)
		g.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "write"})
		return fmt.Errorf("failed to write %s: %w", resolved, err)
	}

	g.metrics.IncrementCounter("storage.write.success", nil)
	g.metrics.RecordHistogram("storage.write.bytes", float64(len(data)), nil)
	g.metrics.RecordHistogram("storage.write.duration_ms", float64(time.Since(startTime).Milliseconds()), nil)
	return nil
}

// CreateExclusive opens path for writing under an advisory flock. The file
// is truncated only after the lock is held, so a concurrent writer's data
// is never clobbered.
func (g *Gateway) CreateExclusive(ctx context.Context, path string) (io.WriteCloser, error) {
	resolved, err := g.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		g.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "open"})
		return nil, fmt.Errorf("failed to open %s: %w", resolved, err)
	}

	lock := flock.New(resolved)
	locked, err := lock.TryLock()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", resolved, err)
	}
	if !locked {
		file.Close()
		g.logger.Warn("File is locked by another writer", "path", resolved)
		g.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "locked"})
		return nil, fmt.Errorf("%s: %w", resolved, ports.ErrFileLocked)
	}

	if err := file.Truncate(0); err != nil {
		lock.Unlock()
		file.Close()
		return nil, fmt.Errorf("failed to truncate %s: %w", resolved, err)
	}

	return &exclusiveFile{file: file, lock: lock, gateway: g, startTime: time.Now()}, nil
}

// resolve cleans path and applies the root guard.
func (g *Gateway) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if g.root == "" {
		return cleaned, nil
	}

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	rel, err := filepath.Rel(g.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ports.ErrOutsideRoot)
	}
	return abs, nil
}

type exclusiveFile struct {
	file      *os.File
	lock      *flock.Flock
	gateway   *Gateway
	written   int64
	startTime time.Time
}

func (f *exclusiveFile) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	f.written += int64(n)
	return n, err
}

// Close closes the file, then releases the lock.
func (f *exclusiveFile) Close() error {
	closeErr := f.file.Close()
	unlockErr := f.lock.Unlock()

	if closeErr != nil {
		f.gateway.metrics.IncrementCounter("storage.write.errors", map[string]string{"error": "close"})
		return fmt.Errorf("failed to close %s: %w", f.file.Name(), closeErr)
	}
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock %s: %w", f.file.Name(), unlockErr)
	}

	f.gateway.metrics.IncrementCounter("storage.write.success", nil)
	f.gateway.metrics.RecordHistogram("storage.write.bytes", float64(f.written), nil)
	f.gateway.metrics.RecordHistogram("storage.write.duration_ms",
		float64(time.Since(f.startTime).Milliseconds()), nil)
	return nil
}
