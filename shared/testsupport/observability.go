// Package testsupport holds helpers shared by tests across packages.
package testsupport

import (
	"io"
	"testing"

	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/observability"
	"mangadownloader/shared/infrastructure/observability/adapters/stdout"
)

// NewObservability returns observability backed by a discarded logger and
// the in-memory metrics store, which is returned for assertions.
func NewObservability(t testing.TB) (*observability.Observability, *stdout.Metrics) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Environment = "test"

	logger := stdout.NewLogger(io.Discard, "debug", false)
	metrics := stdout.NewMetrics(logger)
	return observability.FromComponents(cfg, logger, metrics), metrics
}
