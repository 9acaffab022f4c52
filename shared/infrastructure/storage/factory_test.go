package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/storage/adapters/fs"
	"mangadownloader/shared/testsupport"
)

func TestCreateFileSystem(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)

	cfg := config.DefaultConfig()
	cfg.Storage.BucketOrPath = t.TempDir()

	gateway, err := CreateFileSystem(context.Background(), cfg, obs)
	require.NoError(t, err)
	assert.IsType(t, &fs.Gateway{}, gateway)

	cfg.Adapters.Storage = "ftp"
	_, err = CreateFileSystem(context.Background(), cfg, obs)
	assert.ErrorContains(t, err, "unsupported storage adapter")
}
