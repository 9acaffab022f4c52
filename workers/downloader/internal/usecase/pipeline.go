package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/workers/downloader/internal/domain"
	"mangadownloader/workers/downloader/internal/domain/service"
)

// Transferer stores a job's pages and reports which mode it used.
type Transferer interface {
	Transfer(ctx context.Context, job domain.Job) (service.TransferMode, error)
}

// DownloadPipeline runs one job end to end: prepare the destination, honour
// exclusions, transfer, validate, record and notify.
type DownloadPipeline struct {
	fs       ports.FileSystem
	store    ports.MetadataStore
	transfer Transferer
	notifier domain.Notifier

	decodeMinFileSize   int64
	transferMinFileSize int64

	logger  ports.Logger
	metrics ports.Metrics
}

func NewDownloadPipeline(
	fs ports.FileSystem,
	store ports.MetadataStore,
	transfer Transferer,
	notifier domain.Notifier,
	cfg config.DownloadConfig,
	logger ports.Logger,
	metrics ports.Metrics,
) *DownloadPipeline {
	return &DownloadPipeline{
		fs:                  fs,
		store:               store,
		transfer:            transfer,
		notifier:            notifier,
		decodeMinFileSize:   cfg.DecodeMinFileSize,
		transferMinFileSize: cfg.TransferMinFileSize,
		logger:              logger,
		metrics:             metrics,
	}
}

// Process returns a nil error for every outcome, skips and failed validation
// included. Errors are left for the caller to retry.
func (p *DownloadPipeline) Process(ctx context.Context, job domain.Job) (domain.Outcome, error) {
	startTime := time.Now()

	outcome, err := p.process(ctx, job)
	if err != nil {
		p.metrics.IncrementCounter("pipeline.errors", nil)
		return "", err
	}

	p.metrics.IncrementCounter("pipeline.outcomes", map[string]string{"outcome": string(outcome)})
	p.metrics.RecordHistogram("pipeline.duration_ms", float64(time.Since(startTime).Milliseconds()), nil)
	return outcome, nil
}

func (p *DownloadPipeline) process(ctx context.Context, job domain.Job) (domain.Outcome, error) {
	if len(job.Images) == 0 {
		p.logger.Info("Job has no images, nothing to do", "chapter", job.Label())
		return domain.OutcomeSkippedEmpty, nil
	}

	folder := filepath.Dir(job.Images[0].DestinationPath)
	exists, err := p.fs.FolderExists(ctx, folder)
	if err != nil {
		return "", fmt.Errorf("failed to check destination folder: %w", err)
	}
	if exists {
		p.logger.Info("Destination folder exists, re-downloading", "chapter", job.Label(), "folder", folder)
	} else if err := p.fs.CreateFolder(ctx, folder); err != nil {
		return "", fmt.Errorf("failed to create destination folder: %w", err)
	}

	excluded, err := p.store.GetExcludedChapters(ctx, job.Title)
	if err != nil {
		return "", fmt.Errorf("failed to load excluded chapters: %w", err)
	}
	if excluded.Contains(job.ChapterNum) {
		p.logger.Info("Skipping excluded chapter", "chapter", job.Label())
		return domain.OutcomeSkippedExcluded, nil
	}

	mode, err := p.transfer.Transfer(ctx, job)
	if err != nil {
		p.logger.Error("Transfer failed", "chapter", job.Label(), "error", err)
		return "", fmt.Errorf("transfer %s: %w", job.Label(), err)
	}

	threshold := p.transferMinFileSize
	if mode == service.ModeDecode {
		threshold = p.decodeMinFileSize
	}

	valid, err := p.fs.HasFileAboveSize(ctx, folder, threshold)
	if err != nil {
		return "", fmt.Errorf("failed to validate %s: %w", folder, err)
	}
	if !valid {
		p.logger.Warn("Downloaded files are invalid", "chapter", job.Label(), "folder", folder, "threshold_bytes", threshold)
		return domain.OutcomeValidationFailed, nil
	}

	p.logger.Info("Successfully downloaded", "chapter", job.Label(), "mode", string(mode))

	table := service.SourceTableFor(job.Images[0].SourceURI)
	if err := p.store.AppendMetadata(ctx, job.Title, job.ChapterNum, table); err != nil {
		return "", fmt.Errorf("failed to record chapter: %w", err)
	}

	payload := domain.NewNotificationPayload(job.ChapterNum, job.Title, p.fileNames(job.Images))
	status, err := p.notifier.Notify(ctx, payload)
	if err != nil {
		p.logger.Warn("Notification failed", "chapter", job.Label(), "status", status, "error", err)
	}

	return domain.OutcomeCompleted, nil
}

func (p *DownloadPipeline) fileNames(images []domain.ImageItem) string {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = p.fs.SanitizeFileName(img.FileName)
	}
	return strings.Join(names, ",")
}
