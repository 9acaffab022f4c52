package config

import (
	"fmt"
	"time"
)

// DefaultConfig returns a complete configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		ServiceName: "manga-downloader",
		LogLevel:    "info",
		Version:     "1.0.0",

		Adapters:      DefaultAdapterConfig(),
		HTTP:          DefaultHTTPConfig(),
		Lambda:        DefaultLambdaConfig(),
		Storage:       DefaultStorageConfig(),
		Database:      DefaultDatabaseConfig(),
		Observability: DefaultObservabilityConfig(),
		Queue:         DefaultQueueConfig(),
		Download:      DefaultDownloadConfig(),
		Notify:        DefaultNotifyConfig(),
	}
}

// DefaultAdapterConfig returns default adapter selection
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Runtime:  "rabbitmq",
		Storage:  "filesystem",
		Database: "postgres",
		Logger:   "stdout",
		Metrics:  "stdout",
	}
}

// DefaultHTTPConfig returns sensible defaults for HTTP configuration
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   100 * time.Second,
		UserAgent: "manga-downloader/1.0",
		Addr:      ":8080",
	}
}

// DefaultLambdaConfig returns sensible defaults for Lambda configuration
func DefaultLambdaConfig() LambdaConfig {
	return LambdaConfig{
		Timeout:                   180 * time.Second,
		EnablePartialBatchFailure: true,
	}
}

// DefaultStorageConfig returns sensible defaults for storage configuration
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		S3: S3Config{Region: "us-east-2"},
	}
}

// DefaultDatabaseConfig returns sensible defaults for database configuration
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:         "localhost",
		Port:         5432,
		Database:     "mangas",
		Username:     "postgres",
		Password:     "postgres",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		SQLitePath:   "mangas.db",
	}
}

// DefaultObservabilityConfig returns sensible defaults for observability configuration
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		CloudWatchRegion: "us-east-2",
	}
}

// DefaultQueueConfig returns the queue the worker has always consumed
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Name: "download_queue",
		RabbitMQ: RabbitMQConfig{
			Host:      "localhost",
			Port:      5672,
			Username:  "guest",
			Password:  "guest",
			VHost:     "/",
			Heartbeat: 10 * time.Second,
		},
		SQS: SQSConfig{
			Region:   "us-east-2",
			WaitTime: 20 * time.Second,
		},
	}
}

// DefaultDownloadConfig returns the validation thresholds in bytes
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		DecodeMinFileSize:   10 * 1024,
		TransferMinFileSize: 10 * 1024,
	}
}

// DefaultNotifyConfig returns defaults for the completion callback
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Timeout: 100 * time.Second,
	}
}

// applyDefaults applies environment-specific defaults
func applyDefaults(cfg *Config) {
	adapters := DefaultAdapterConfig()

	if cfg.IsProduction() {
		adapters.Logger = "cloudwatch"
		adapters.Metrics = "cloudwatch"
	}
	if IsLambda() {
		adapters.Runtime = "lambda"
		adapters.Storage = "s3"
	}

	if cfg.Adapters.Runtime == "" {
		cfg.Adapters.Runtime = adapters.Runtime
	}
	if cfg.Adapters.Storage == "" {
		cfg.Adapters.Storage = adapters.Storage
	}
	if cfg.Adapters.Database == "" {
		cfg.Adapters.Database = adapters.Database
	}
	if cfg.Adapters.Logger == "" {
		cfg.Adapters.Logger = adapters.Logger
	}
	if cfg.Adapters.Metrics == "" {
		cfg.Adapters.Metrics = adapters.Metrics
	}

	if cfg.Storage.BucketOrPath == "" && cfg.Adapters.Storage == "s3" {
		cfg.Storage.BucketOrPath = fmt.Sprintf("%s-library", cfg.ServiceName)
	}

	if cfg.IsLocal() && cfg.Adapters.Database == "sqlite" {
		cfg.Database.AutoMigrate = true
	}
}
