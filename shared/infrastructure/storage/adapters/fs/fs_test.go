package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/testsupport"
)

func newGateway(t *testing.T, root string) *Gateway {
	t.Helper()
	obs, _ := testsupport.NewObservability(t)
	g, err := NewGateway(root, obs)
	require.NoError(t, err)
	return g
}

func TestGateway_FolderLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "Solo Leveling", "chapter-12")
	g := newGateway(t, "")

	exists, err := g.FolderExists(ctx, dir)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, g.CreateFolder(ctx, dir))

	exists, err = g.FolderExists(ctx, dir)
	require.NoError(t, err)
	assert.True(t, exists)

	// a regular file is not a folder
	file := filepath.Join(dir, "001.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	exists, err = g.FolderExists(ctx, file)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGateway_HasFileAboveSize(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	g := newGateway(t, "")

	tests := []struct {
		name      string
		size      int
		threshold int64
		want      bool
	}{
		{name: "strictly above", size: 20000, threshold: 15360, want: true},
		{name: "equal is not above", size: 15360, threshold: 15360, want: false},
		{name: "below", size: 50, threshold: 10240, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			require.NoError(t, os.MkdirAll(sub, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(sub, "page.jpg"), make([]byte, tt.size), 0644))

			got, err := g.HasFileAboveSize(ctx, sub, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("missing folder", func(t *testing.T) {
		got, err := g.HasFileAboveSize(ctx, filepath.Join(dir, "nope"), 0)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("nested files are ignored", func(t *testing.T) {
		sub := filepath.Join(dir, "nested")
		require.NoError(t, os.MkdirAll(filepath.Join(sub, "inner"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "inner", "big.jpg"), make([]byte, 30000), 0644))

		got, err := g.HasFileAboveSize(ctx, sub, 10)
		require.NoError(t, err)
		assert.False(t, got)
	})
}

func TestGateway_WriteBytesOverwrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a", "b", "001.jpg")
	g := newGateway(t, "")

	require.NoError(t, g.WriteBytes(ctx, path, []byte("first version")))
	require.NoError(t, g.WriteBytes(ctx, path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestGateway_CreateExclusiveTruncates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "002.jpg")
	require.NoError(t, os.WriteFile(path, []byte("a much longer previous body"), 0644))
	g := newGateway(t, "")

	w, err := g.CreateExclusive(ctx, path)
	require.NoError(t, err)
	_, err = io.Copy(w, strings.NewReader("new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestGateway_CreateExclusiveLockedByAnotherWriter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "003.jpg")
	require.NoError(t, os.WriteFile(path, []byte("held"), 0644))

	other := flock.New(path)
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	g := newGateway(t, "")
	_, err = g.CreateExclusive(ctx, path)
	assert.ErrorIs(t, err, ports.ErrFileLocked)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "held", string(data))
}

func TestGateway_RootGuard(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	g := newGateway(t, root)

	require.NoError(t, g.CreateFolder(ctx, filepath.Join(root, "Solo")))

	err := g.CreateFolder(ctx, filepath.Join(root, "..", "escape"))
	assert.ErrorIs(t, err, ports.ErrOutsideRoot)

	_, err = g.CreateExclusive(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ports.ErrOutsideRoot)
}

func TestGateway_SanitizeFileName(t *testing.T) {
	g := newGateway(t, "")
	assert.Equal(t, "Pokemon 01.jpg", g.SanitizeFileName("Poké<mon> 01.jpg"))
}
