package observability

import (
	"fmt"
	"net/http"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

// Observability hands out root and component-scoped loggers and metrics.
type Observability struct {
	config         *config.Config
	logger         ports.Logger
	metrics        ports.Metrics
	metricsHandler http.Handler
}

// FromComponents wraps already built adapters. Tests use it with stdout
// adapters writing to io.Discard.
func FromComponents(cfg *config.Config, logger ports.Logger, metrics ports.Metrics) *Observability {
	return &Observability{config: cfg, logger: logger, metrics: metrics}
}

// MetricsHandler returns the scrape handler when the Prometheus adapter is
// selected, nil otherwise.
func (obs *Observability) MetricsHandler() http.Handler {
	return obs.metricsHandler
}

// Components returns logger and metrics without any scoping
func (obs *Observability) Components() (ports.Logger, ports.Metrics, error) {
	if obs.logger == nil || obs.metrics == nil {
		return nil, nil, fmt.Errorf("observability not initialized")
	}
	return obs.logger, obs.metrics, nil
}

// ComponentsScoped returns logger and metrics scoped to a specific component
func (obs *Observability) ComponentsScoped(component string) (ports.Logger, ports.Metrics, error) {
	if obs.logger == nil || obs.metrics == nil {
		return nil, nil, fmt.Errorf("observability not initialized")
	}
	return obs.getScopedLogger(component), obs.getScopedMetrics(component), nil
}

// Logger returns the root logger without scoping
func (obs *Observability) Logger() (ports.Logger, error) {
	if obs.logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return obs.logger, nil
}

// LoggerScoped returns a logger scoped to a specific component
func (obs *Observability) LoggerScoped(component string) (ports.Logger, error) {
	if obs.logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return obs.getScopedLogger(component), nil
}

// Metrics returns the root metrics without scoping
func (obs *Observability) Metrics() (ports.Metrics, error) {
	if obs.metrics == nil {
		return nil, fmt.Errorf("metrics not initialized")
	}
	return obs.metrics, nil
}

// MetricsScoped returns metrics scoped to a specific component
func (obs *Observability) MetricsScoped(component string) (ports.Metrics, error) {
	if obs.metrics == nil {
		return nil, fmt.Errorf("metrics not initialized")
	}
	return obs.getScopedMetrics(component), nil
}

func (obs *Observability) getScopedLogger(component string) ports.Logger {
	return obs.logger.WithFields(map[string]interface{}{
		"service":   obs.config.ServiceName,
		"version":   obs.config.Version,
		"env":       obs.config.Environment,
		"component": component,
	})
}

func (obs *Observability) getScopedMetrics(component string) ports.Metrics {
	return obs.metrics.WithTags(map[string]string{
		"component": component,
	})
}
