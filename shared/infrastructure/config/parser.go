package config

import (
	"mangadownloader/shared/utils"
)

// parse reads configuration from environment variables
func parse() (*Config, error) {
	defaults := DefaultConfig()

	cfg := &Config{
		// Core
		Environment: utils.GetEnv("ENVIRONMENT", "local"),
		ServiceName: utils.GetEnv("SERVICE_NAME", defaults.ServiceName),
		LogLevel:    utils.GetEnv("LOG_LEVEL", defaults.LogLevel),
		Version:     utils.GetEnv("SERVICE_VERSION", defaults.Version),
		LockFile:    utils.GetEnv("LOCK_FILE", ""),

		// Adapter selection, empty values are filled by applyDefaults
		Adapters: AdapterConfig{
			Runtime:  utils.GetEnv("ADAPTER_RUNTIME", ""),
			Storage:  utils.GetEnv("ADAPTER_STORAGE", ""),
			Database: utils.GetEnv("ADAPTER_DATABASE", ""),
			Logger:   utils.GetEnv("ADAPTER_LOGGER", ""),
			Metrics:  utils.GetEnv("ADAPTER_METRICS", ""),
		},

		Database: DatabaseConfig{
			Host:     utils.GetEnv("DB_HOST", defaults.Database.Host),
			Port:     utils.GetEnvInt("DB_PORT", defaults.Database.Port),
			Database: utils.GetEnv("DB_NAME", defaults.Database.Database),
			Username: utils.GetEnv("DB_USER", defaults.Database.Username),
			Password: utils.GetEnv("DB_PASSWORD", defaults.Database.Password),
			SSLMode:  utils.GetEnv("DB_SSL_MODE", defaults.Database.SSLMode),

			MaxOpenConns: utils.GetEnvInt("DB_MAX_OPEN_CONNS", defaults.Database.MaxOpenConns),
			MaxIdleConns: utils.GetEnvInt("DB_MAX_IDLE_CONNS", defaults.Database.MaxIdleConns),

			SQLitePath:  utils.GetEnv("SQLITE_PATH", defaults.Database.SQLitePath),
			AutoMigrate: utils.GetEnvBool("DB_AUTO_MIGRATE", defaults.Database.AutoMigrate),
		},

		HTTP: HTTPConfig{
			Timeout:   utils.GetEnvDuration("HTTP_TIMEOUT", defaults.HTTP.Timeout),
			UserAgent: utils.GetEnv("HTTP_USER_AGENT", defaults.HTTP.UserAgent),
			Addr:      utils.GetEnv("HTTP_ADDR", defaults.HTTP.Addr),
			OpsAddr:   utils.GetEnv("OPS_ADDR", ""),
		},

		Lambda: LambdaConfig{
			Timeout:                   utils.GetEnvDuration("LAMBDA_TIMEOUT", defaults.Lambda.Timeout),
			EnablePartialBatchFailure: utils.GetEnvBool("LAMBDA_PARTIAL_BATCH_FAILURE", true),
		},

		Storage: StorageConfig{
			BucketOrPath: utils.GetEnv("STORAGE_BUCKET_OR_PATH", ""),
			S3: S3Config{
				Region:          utils.GetEnv("AWS_REGION", defaults.Storage.S3.Region),
				AccessKeyID:     utils.GetEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: utils.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        utils.GetEnv("S3_ENDPOINT", ""),
			},
		},

		Observability: ObservabilityConfig{
			CloudWatchRegion:    utils.GetEnv("CLOUDWATCH_REGION", utils.GetEnv("AWS_REGION", defaults.Observability.CloudWatchRegion)),
			CloudWatchLogGroup:  utils.GetEnv("CLOUDWATCH_LOG_GROUP", ""),
			CloudWatchNamespace: utils.GetEnv("CLOUDWATCH_NAMESPACE", ""),
		},

		Queue: QueueConfig{
			Name: utils.GetEnv("QUEUE_NAME", defaults.Queue.Name),

			RabbitMQ: RabbitMQConfig{
				URL:       utils.GetEnv("RABBITMQ_URL", ""),
				Host:      utils.GetEnv("RABBITMQ_HOST", defaults.Queue.RabbitMQ.Host),
				Port:      utils.GetEnvInt("RABBITMQ_PORT", defaults.Queue.RabbitMQ.Port),
				Username:  utils.GetEnv("RABBITMQ_USER", defaults.Queue.RabbitMQ.Username),
				Password:  utils.GetEnv("RABBITMQ_PASSWORD", defaults.Queue.RabbitMQ.Password),
				VHost:     utils.GetEnv("RABBITMQ_VHOST", defaults.Queue.RabbitMQ.VHost),
				Heartbeat: utils.GetEnvDuration("RABBITMQ_HEARTBEAT", defaults.Queue.RabbitMQ.Heartbeat),
			},

			SQS: SQSConfig{
				Region:   utils.GetEnv("SQS_REGION", utils.GetEnv("AWS_REGION", defaults.Queue.SQS.Region)),
				Endpoint: utils.GetEnv("SQS_ENDPOINT", ""),
				WaitTime: utils.GetEnvDuration("SQS_WAIT_TIME", defaults.Queue.SQS.WaitTime),
			},
		},

		Download: DownloadConfig{
			DecodeMinFileSize:   utils.GetEnvInt64("DOWNLOAD_DECODE_MIN_FILE_SIZE", defaults.Download.DecodeMinFileSize),
			TransferMinFileSize: utils.GetEnvInt64("DOWNLOAD_TRANSFER_MIN_FILE_SIZE", defaults.Download.TransferMinFileSize),
		},

		Notify: NotifyConfig{
			Endpoint: utils.GetEnv("NOTIFY_ENDPOINT", ""),
			Timeout:  utils.GetEnvDuration("NOTIFY_TIMEOUT", defaults.Notify.Timeout),
		},
	}

	return cfg, nil
}
