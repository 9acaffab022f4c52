package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"mangadownloader/shared/application/ports"
	"mangadownloader/workers/downloader/internal/domain"
)

// TransferMode says how a job's pages reached storage.
type TransferMode string

const (
	ModeDecode TransferMode = "decode"
	ModeFetch  TransferMode = "fetch"
)

// TransferService moves a job's pages into storage, either by decoding the
// inline payloads or by fetching every page over HTTP, one at a time.
type TransferService struct {
	fs        ports.FileSystem
	client    domain.HTTPDoer
	userAgent string
	logger    ports.Logger
	metrics   ports.Metrics
}

func NewTransferService(fs ports.FileSystem, client domain.HTTPDoer, userAgent string, logger ports.Logger, metrics ports.Metrics) *TransferService {
	return &TransferService{
		fs:        fs,
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		metrics:   metrics,
	}
}

// Transfer picks the mode from the job and runs it.
func (s *TransferService) Transfer(ctx context.Context, job domain.Job) (TransferMode, error) {
	if job.Embedded() {
		s.logger.Info("Saving embedded pages", "chapter", job.Label(), "pages", len(job.Images))
		return ModeDecode, s.DecodeEmbedded(ctx, job.Images)
	}

	s.logger.Info("Fetching remote pages", "chapter", job.Label(), "pages", len(job.Images))
	return ModeFetch, s.FetchRemote(ctx, job.Images)
}

// DecodeEmbedded writes every page's base64 payload to its destination path,
// overwriting what is there.
func (s *TransferService) DecodeEmbedded(ctx context.Context, images []domain.ImageItem) error {
	for _, img := range images {
		if img.EmbeddedPayload == "" {
			s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeDecode), "error": "missing_payload"})
			return ErrMissingPayload(img.DestinationPath)
		}

		data, err := base64.StdEncoding.DecodeString(img.EmbeddedPayload)
		if err != nil {
			s.logger.Error("Invalid base64 content", "path", img.DestinationPath, "error", err)
			s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeDecode), "error": "malformed_payload"})
			return ErrMalformedPayload(img.DestinationPath, err)
		}

		if err := s.fs.WriteBytes(ctx, img.DestinationPath, data); err != nil {
			s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeDecode), "error": "write"})
			return fmt.Errorf("failed to save %s: %w", img.DestinationPath, err)
		}

		s.logger.Debug("Image saved", "path", img.DestinationPath, "size_bytes", len(data))
		s.metrics.IncrementCounter("transfer.pages", map[string]string{"mode": string(ModeDecode)})
	}
	return nil
}

// FetchRemote downloads the pages sequentially, streaming each body into an
// exclusively held file named after the sanitized destination base name.
func (s *TransferService) FetchRemote(ctx context.Context, images []domain.ImageItem) error {
	for _, img := range images {
		if err := s.fetch(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

func (s *TransferService) fetch(ctx context.Context, img domain.ImageItem) error {
	if img.SourceURI == "" {
		s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeFetch), "error": "missing_uri"})
		return ErrMissingSourceURI(img.DestinationPath)
	}

	target, err := s.targetPath(img.DestinationPath)
	if err != nil {
		s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeFetch), "error": "unsafe_name"})
		return err
	}

	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.SourceURI, nil)
	if err != nil {
		return ErrRequestCreation(err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeFetch), "error": "request"})
		return ErrHTTPRequest(img.SourceURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("Page fetch failed", "uri", img.SourceURI, "status", resp.StatusCode)
		s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeFetch), "error": "status"})
		return ErrUnexpectedStatus(img.SourceURI, resp.StatusCode)
	}

	if err := s.fs.CreateFolder(ctx, filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", target, err)
	}

	w, err := s.fs.CreateExclusive(ctx, target)
	if err != nil {
		s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeFetch), "error": "open"})
		return fmt.Errorf("failed to open %s: %w", target, err)
	}

	written, copyErr := io.Copy(w, resp.Body)
	closeErr := w.Close()
	if copyErr != nil {
		s.metrics.IncrementCounter("transfer.errors", map[string]string{"mode": string(ModeFetch), "error": "read"})
		return ErrReadResponse(img.SourceURI, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", target, closeErr)
	}

	duration := time.Since(startTime)
	s.logger.Debug("Page fetched",
		"uri", img.SourceURI,
		"path", target,
		"size_bytes", written,
		"duration_ms", duration.Milliseconds())
	s.metrics.IncrementCounter("transfer.pages", map[string]string{"mode": string(ModeFetch)})
	s.metrics.RecordHistogram("transfer.fetch.duration_ms", float64(duration.Milliseconds()), nil)
	s.metrics.RecordHistogram("transfer.fetch.size", float64(written), nil)
	return nil
}

// targetPath rebuilds destination with a sanitized base name and refuses
// anything that would land outside the destination folder.
func (s *TransferService) targetPath(destination string) (string, error) {
	folder := filepath.Dir(destination)
	safe := s.fs.SanitizeFileName(filepath.Base(destination))

	if safe == "" || safe == "." || safe == ".." {
		return "", ErrUnsafeFileName(destination)
	}

	target := filepath.Join(folder, safe)
	if filepath.Dir(target) != filepath.Clean(folder) {
		return "", ErrUnsafeFileName(destination)
	}
	return target, nil
}
