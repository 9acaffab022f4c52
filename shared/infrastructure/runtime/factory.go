package runtime

import (
	"fmt"
	"net/http"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/queue"
)

// Create creates the runtime selected in cfg around handler. handler is
// wrapped with the default middleware. metricsHandler may be nil.
func Create(cfg *config.Config, handler ports.Handler, metricsHandler http.Handler, obs ports.Observability) (ports.Runtime, error) {
	switch cfg.Adapters.Runtime {
	case "lambda":
		wrapped, err := WithDefaultMiddleware(handler, obs)
		if err != nil {
			return nil, err
		}
		return NewLambdaRuntime(&cfg.Lambda, wrapped, obs)

	case "http":
		wrapped, err := WithDefaultMiddleware(handler, obs)
		if err != nil {
			return nil, err
		}
		return NewHTTPRuntime(&cfg.HTTP, wrapped, metricsHandler, obs)

	case "rabbitmq", "sqs", "memory":
		broker, err := queue.CreateBroker(cfg, obs)
		if err != nil {
			return nil, fmt.Errorf("failed to create broker: %w", err)
		}
		return NewQueueRuntime(cfg, broker, handler, metricsHandler, obs)

	default:
		return nil, fmt.Errorf("unsupported runtime adapter: %s", cfg.Adapters.Runtime)
	}
}

// NewQueueRuntime consumes cfg.Queue.Name from broker, with the ops server
// enabled when cfg.HTTP.OpsAddr is set.
func NewQueueRuntime(cfg *config.Config, broker ports.Broker, handler ports.Handler, metricsHandler http.Handler, obs ports.Observability) (ports.Runtime, error) {
	wrapped, err := WithDefaultMiddleware(handler, obs)
	if err != nil {
		return nil, err
	}

	var ops *OpsServer
	if cfg.HTTP.OpsAddr != "" {
		ops, err = NewOpsServer(cfg.HTTP.OpsAddr, metricsHandler, obs)
		if err != nil {
			return nil, err
		}
	}
	return NewConsumerRuntime(broker, cfg.Queue.Name, wrapped, ops, obs)
}
