package config

import (
	"fmt"
	"strings"
)

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}

	if err := c.Adapters.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	switch c.Adapters.Runtime {
	case "rabbitmq":
		if err := c.Queue.RabbitMQ.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	case "sqs":
		if c.Queue.SQS.Region == "" {
			errors = append(errors, "SQS_REGION is required for SQS runtime")
		}
	case "lambda":
		if c.Lambda.Timeout <= 0 {
			errors = append(errors, "LAMBDA_TIMEOUT must be positive")
		}
	case "http":
		if c.HTTP.Addr == "" {
			errors = append(errors, "HTTP_ADDR is required for HTTP runtime")
		}
	}

	if c.Queue.Name == "" {
		errors = append(errors, "QUEUE_NAME is required")
	}

	if c.HTTP.Timeout <= 0 {
		errors = append(errors, "HTTP_TIMEOUT must be positive")
	}
	if c.Notify.Timeout <= 0 {
		errors = append(errors, "NOTIFY_TIMEOUT must be positive")
	}

	if err := c.Download.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Storage.Validate(c.Adapters); err != nil {
		errors = append(errors, err.Error())
	}

	if c.Adapters.Logger == "cloudwatch" || c.Adapters.Metrics == "cloudwatch" {
		if err := c.Observability.Validate(c.Adapters); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if err := c.Database.Validate(c.Adapters.Database); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate validates adapter configuration
func (a *AdapterConfig) Validate() error {
	var errors []string

	check := func(kind, value string, valid ...string) {
		for _, v := range valid {
			if v == value {
				return
			}
		}
		errors = append(errors, fmt.Sprintf("invalid %s adapter: %q (must be one of %s)", kind, value, strings.Join(valid, ", ")))
	}

	check("runtime", a.Runtime, "rabbitmq", "sqs", "memory", "lambda", "http")
	check("storage", a.Storage, "filesystem", "s3")
	check("database", a.Database, "postgres", "sqlite")
	check("logger", a.Logger, "stdout", "cloudwatch")
	check("metrics", a.Metrics, "stdout", "prometheus", "cloudwatch")

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// Validate validates RabbitMQ configuration
func (r *RabbitMQConfig) Validate() error {
	if r.URL != "" {
		return nil
	}
	if r.Host == "" {
		return fmt.Errorf("RABBITMQ_HOST or RABBITMQ_URL is required for RabbitMQ runtime")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("RABBITMQ_PORT must be between 1 and 65535")
	}
	return nil
}

// Validate validates the validation thresholds
func (d *DownloadConfig) Validate() error {
	if d.DecodeMinFileSize < 0 {
		return fmt.Errorf("DOWNLOAD_DECODE_MIN_FILE_SIZE cannot be negative")
	}
	if d.TransferMinFileSize < 0 {
		return fmt.Errorf("DOWNLOAD_TRANSFER_MIN_FILE_SIZE cannot be negative")
	}
	return nil
}

// Validate validates Storage configuration
func (s *StorageConfig) Validate(adapters AdapterConfig) error {
	if adapters.Storage == "s3" {
		if s.BucketOrPath == "" {
			return fmt.Errorf("STORAGE_BUCKET_OR_PATH (bucket) is required for S3 storage")
		}
		if s.S3.Region == "" {
			return fmt.Errorf("AWS_REGION is required for S3 storage")
		}
	}
	return nil
}

// Validate validates Observability configuration
func (o *ObservabilityConfig) Validate(adapters AdapterConfig) error {
	if o.CloudWatchRegion == "" {
		return fmt.Errorf("CLOUDWATCH_REGION is required for CloudWatch")
	}

	if adapters.Logger == "cloudwatch" && o.CloudWatchLogGroup == "" {
		return fmt.Errorf("CLOUDWATCH_LOG_GROUP is required for CloudWatch logging")
	}

	if adapters.Metrics == "cloudwatch" && o.CloudWatchNamespace == "" {
		return fmt.Errorf("CLOUDWATCH_NAMESPACE is required for CloudWatch metrics")
	}

	return nil
}

// Validate validates Database configuration for the selected adapter
func (d *DatabaseConfig) Validate(adapter string) error {
	var errors []string

	switch adapter {
	case "sqlite":
		if d.SQLitePath == "" {
			errors = append(errors, "SQLITE_PATH is required for sqlite")
		}
	case "postgres":
		if d.Host == "" {
			errors = append(errors, "DB_HOST is required")
		}
		if d.Port <= 0 || d.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if d.Database == "" {
			errors = append(errors, "DB_NAME is required")
		}
		if d.Username == "" {
			errors = append(errors, "DB_USER is required")
		}
	}

	if d.MaxOpenConns < 0 {
		errors = append(errors, "DB_MAX_OPEN_CONNS cannot be negative")
	}
	if d.MaxIdleConns < 0 {
		errors = append(errors, "DB_MAX_IDLE_CONNS cannot be negative")
	}
	if d.MaxOpenConns > 0 && d.MaxIdleConns > d.MaxOpenConns {
		errors = append(errors, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if len(errors) > 0 {
		return fmt.Errorf("database configuration errors: %s", strings.Join(errors, "; "))
	}
	return nil
}
