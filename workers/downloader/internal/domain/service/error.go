package service

import (
	"fmt"

	"mangadownloader/workers/downloader/internal/domain"
)

// Error wrapping functions with context
func ErrRequestCreation(err error) error {
	return fmt.Errorf("failed to create HTTP request: %w", err)
}

func ErrHTTPRequest(uri string, err error) error {
	return fmt.Errorf("HTTP request to %s failed: %w", uri, err)
}

func ErrReadResponse(uri string, err error) error {
	return fmt.Errorf("failed to read response from %s: %w", uri, err)
}

func ErrUnexpectedStatus(uri string, statusCode int) error {
	return domain.ErrUnexpectedStatus.Wrap(fmt.Sprintf("GET %s returned %d", uri, statusCode), nil)
}

func ErrMissingPayload(path string) error {
	return domain.ErrMissingPayload.Wrap(fmt.Sprintf("no payload for %s", path), nil)
}

func ErrMalformedPayload(path string, err error) error {
	return domain.ErrMalformedPayload.Wrap(fmt.Sprintf("cannot decode %s", path), err)
}

func ErrMissingSourceURI(path string) error {
	return domain.ErrMissingSourceURI.Wrap(fmt.Sprintf("no uri for %s", path), nil)
}

func ErrUnsafeFileName(path string) error {
	return domain.ErrUnsafeFileName.Wrap(fmt.Sprintf("refusing to write %s", path), nil)
}
