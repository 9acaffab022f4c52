package storage

import (
	"context"
	"fmt"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/storage/adapters/fs"
	"mangadownloader/shared/infrastructure/storage/adapters/s3"
)

// CreateFileSystem returns the file system gateway selected in cfg.
func CreateFileSystem(ctx context.Context, cfg *config.Config, obs ports.Observability) (ports.FileSystem, error) {
	logger, err := obs.LoggerScoped("storage.factory")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger from observability: %w", err)
	}

	switch cfg.Adapters.Storage {
	case "s3":
		logger.Info("Creating S3 storage adapter",
			"bucket", cfg.Storage.BucketOrPath,
			"region", cfg.Storage.S3.Region)
		return s3.NewGateway(ctx, &cfg.Storage, obs)

	case "filesystem":
		logger.Info("Creating filesystem storage adapter",
			"root", cfg.Storage.BucketOrPath)
		return fs.NewGateway(cfg.Storage.BucketOrPath, obs)

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %s", cfg.Adapters.Storage)
	}
}
