package config

import (
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string
	Version     string

	// Adapter selection
	Adapters AdapterConfig

	// Component configurations
	HTTP          HTTPConfig
	Lambda        LambdaConfig
	Storage       StorageConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Queue         QueueConfig
	Download      DownloadConfig
	Notify        NotifyConfig

	// LockFile, when set, guards against a second worker on the same host.
	LockFile string
}

// AdapterConfig specifies which implementations to use
type AdapterConfig struct {
	Runtime  string // "rabbitmq", "sqs", "memory", "lambda", "http"
	Storage  string // "filesystem", "s3"
	Database string // "postgres", "sqlite"
	Logger   string // "stdout", "cloudwatch"
	Metrics  string // "stdout", "prometheus", "cloudwatch"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	SQLitePath  string
	AutoMigrate bool
}

// HTTPConfig holds the page fetch client and HTTP server settings
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
	Addr      string // listen address for the http runtime
	OpsAddr   string // health and metrics listener for queue runtimes
}

// LambdaConfig holds Lambda-specific configuration
type LambdaConfig struct {
	Timeout                   time.Duration
	EnablePartialBatchFailure bool
}

type StorageConfig struct {
	// Root directory guard for filesystem, bucket name for s3
	BucketOrPath string

	S3 S3Config
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // For MinIO or S3-compatible services
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	CloudWatchRegion    string
	CloudWatchLogGroup  string
	CloudWatchNamespace string
}

// QueueConfig holds the consumed queue and broker connection settings
type QueueConfig struct {
	Name string

	RabbitMQ RabbitMQConfig
	SQS      SQSConfig
}

// RabbitMQConfig holds broker connection settings
type RabbitMQConfig struct {
	URL       string // takes precedence over the discrete fields
	Host      string
	Port      int
	Username  string
	Password  string
	VHost     string
	Heartbeat time.Duration
}

// SQSConfig holds SQS consumer settings
type SQSConfig struct {
	Region   string
	Endpoint string // for LocalStack or ElasticMQ
	WaitTime time.Duration
}

// DownloadConfig holds the post-transfer validation thresholds. The two
// values are tuned independently.
type DownloadConfig struct {
	DecodeMinFileSize   int64
	TransferMinFileSize int64
}

// NotifyConfig holds the downstream completion endpoint
type NotifyConfig struct {
	Endpoint string
	Timeout  time.Duration
}
