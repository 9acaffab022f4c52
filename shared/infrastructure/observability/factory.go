package observability

import (
	"context"
	"fmt"
	"os"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/observability/adapters/cloudwatch"
	"mangadownloader/shared/infrastructure/observability/adapters/prometheus"
	"mangadownloader/shared/infrastructure/observability/adapters/stdout"
)

// CreateObservability builds the logger and metrics adapters selected in cfg.
func CreateObservability(ctx context.Context, cfg *config.Config) (*Observability, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	logger, err := createLogger(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create observability: %w", err)
	}

	obs := &Observability{config: cfg, logger: logger}

	switch cfg.Adapters.Metrics {
	case "stdout":
		obs.metrics = stdout.NewMetrics(logger)
	case "prometheus":
		metrics := prometheus.NewMetrics(cfg.ServiceName)
		obs.metrics = metrics
		obs.metricsHandler = metrics.Handler()
	case "cloudwatch":
		metrics, err := cloudwatch.NewMetrics(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create CloudWatch metrics: %w", err)
		}
		obs.metrics = metrics
	default:
		return nil, fmt.Errorf("unsupported metrics adapter: %s", cfg.Adapters.Metrics)
	}

	return obs, nil
}

func createLogger(ctx context.Context, cfg *config.Config) (ports.Logger, error) {
	switch cfg.Adapters.Logger {
	case "stdout":
		return stdout.NewLogger(os.Stdout, cfg.LogLevel, cfg.IsLocal()), nil
	case "cloudwatch":
		logger, err := cloudwatch.NewLogger(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create CloudWatch logger: %w", err)
		}
		return logger, nil
	default:
		return nil, fmt.Errorf("unsupported logger adapter: %s", cfg.Adapters.Logger)
	}
}
