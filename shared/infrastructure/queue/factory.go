package queue

import (
	"fmt"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

// BrokerKind maps the configured runtime to the broker it talks to. The
// lambda runtime is fed by SQS and the http runtime publishes to RabbitMQ.
func BrokerKind(cfg *config.Config) string {
	switch cfg.Adapters.Runtime {
	case "sqs", "lambda":
		return "sqs"
	case "memory":
		return "memory"
	default:
		return "rabbitmq"
	}
}

func CreateBroker(cfg *config.Config, obs ports.Observability) (ports.Broker, error) {
	logger, err := obs.LoggerScoped("queue.factory")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger from observability: %w", err)
	}

	switch kind := BrokerKind(cfg); kind {
	case "rabbitmq":
		logger.Info("Creating RabbitMQ broker adapter",
			"host", cfg.Queue.RabbitMQ.Host,
			"queue", cfg.Queue.Name)
		return NewRabbitMQBroker(&cfg.Queue.RabbitMQ, obs)

	case "sqs":
		logger.Info("Creating SQS broker adapter",
			"region", cfg.Queue.SQS.Region,
			"queue", cfg.Queue.Name)
		return NewSQSBroker(&cfg.Queue.SQS, obs)

	case "memory":
		logger.Info("Creating in-memory broker adapter", "queue", cfg.Queue.Name)
		return NewMemoryBroker(), nil

	default:
		return nil, fmt.Errorf("unsupported broker: %s", kind)
	}
}
