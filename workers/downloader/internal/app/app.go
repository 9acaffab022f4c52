// Package app wires the downloader's adapters into a runnable worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/database"
	"mangadownloader/shared/infrastructure/lock"
	"mangadownloader/shared/infrastructure/observability"
	"mangadownloader/shared/infrastructure/queue"
	"mangadownloader/shared/infrastructure/repository"
	"mangadownloader/shared/infrastructure/runtime"
	"mangadownloader/shared/infrastructure/storage"
	httpadapter "mangadownloader/workers/downloader/internal/adapters/http"
	"mangadownloader/workers/downloader/internal/domain/service"
	"mangadownloader/workers/downloader/internal/usecase"
)

// App holds the initialized worker and everything that must be released
// when it stops.
type App struct {
	cfg    *config.Config
	obs    *observability.Observability
	logger ports.Logger

	instance *lock.Instance
	db       ports.Database
	fs       ports.FileSystem
	repos    *repository.Repositories
	pipeline *usecase.DownloadPipeline
	handler  *usecase.JobHandler
}

// New initializes storage, the database and the pipeline. The instance lock
// is taken first so a second worker fails before touching anything.
func New(ctx context.Context, cfg *config.Config, obs *observability.Observability) (*App, error) {
	logger, err := obs.LoggerScoped("app")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger: %w", err)
	}

	a := &App{cfg: cfg, obs: obs, logger: logger}

	if cfg.LockFile != "" {
		a.instance, err = lock.Acquire(cfg.LockFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Instance lock acquired", "path", a.instance.Path())
	}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error

	a.fs, err = storage.CreateFileSystem(ctx, a.cfg, a.obs)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.db, err = database.CreateDatabase(a.cfg, a.obs)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if a.cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, a.db, a.logger); err != nil {
			return err
		}
	}

	a.repos, err = repository.NewRepositories(a.db, a.obs)
	if err != nil {
		return err
	}

	notifier, err := httpadapter.NewNotifier(a.cfg.Notify.Endpoint, a.cfg.Notify.Timeout, a.obs)
	if err != nil {
		return err
	}

	transferLogger, transferMetrics, err := a.obs.ComponentsScoped("transfer")
	if err != nil {
		return err
	}
	transfer := service.NewTransferService(
		a.fs,
		&http.Client{Timeout: a.cfg.HTTP.Timeout},
		a.cfg.HTTP.UserAgent,
		transferLogger,
		transferMetrics,
	)

	pipelineLogger, pipelineMetrics, err := a.obs.ComponentsScoped("pipeline")
	if err != nil {
		return err
	}
	a.pipeline = usecase.NewDownloadPipeline(
		a.fs,
		a.repos.Metadata(),
		transfer,
		notifier,
		a.cfg.Download,
		pipelineLogger,
		pipelineMetrics,
	)

	handlerLogger, err := a.obs.LoggerScoped("handler.download")
	if err != nil {
		return err
	}
	a.handler = usecase.NewJobHandler(a.pipeline, handlerLogger)
	return nil
}

func (a *App) Handler() ports.Handler {
	return a.handler
}

func (a *App) Metadata() ports.MetadataStore {
	return a.repos.Metadata()
}

// Runtime builds the configured runtime. With the memory runtime, seed jobs
// are queued before consumption starts.
func (a *App) Runtime(ctx context.Context, seeds ...[]byte) (ports.Runtime, error) {
	if a.cfg.Adapters.Runtime != "memory" {
		if len(seeds) > 0 {
			return nil, fmt.Errorf("seed jobs need the memory runtime, got %s", a.cfg.Adapters.Runtime)
		}
		return runtime.Create(a.cfg, a.handler, a.obs.MetricsHandler(), a.obs)
	}

	broker := queue.NewMemoryBroker()
	for _, body := range seeds {
		if err := broker.Publish(ctx, a.cfg.Queue.Name, body); err != nil {
			return nil, fmt.Errorf("failed to queue seed job: %w", err)
		}
	}
	a.logger.Info("Queued seed jobs", "count", len(seeds), "queue", a.cfg.Queue.Name)
	return runtime.NewQueueRuntime(a.cfg, broker, a.handler, a.obs.MetricsHandler(), a.obs)
}

// Close releases the database and the instance lock.
func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if a.instance != nil {
		if err := a.instance.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
	}
	return errors.Join(errs...)
}
