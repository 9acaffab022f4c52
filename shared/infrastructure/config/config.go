package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	instance *Config
	loadErr  error
	loadOnce sync.Once
)

// Load loads configuration from environment variables and .env files.
// It is safe to call repeatedly; the first result is cached.
func Load() (*Config, error) {
	loadOnce.Do(func() {
		instance, loadErr = load()
	})
	return instance, loadErr
}

func load() (*Config, error) {
	// Load .env files in order of precedence
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg, err := parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// IsLocal reports whether the worker runs on a developer machine or in tests.
func (c *Config) IsLocal() bool {
	switch strings.ToLower(c.Environment) {
	case "local", "development", "dev", "test":
		return true
	}
	return false
}

func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Environment) {
	case "production", "prod":
		return true
	}
	return false
}

// IsLambda reports whether the process runs inside AWS Lambda.
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// ConnectionURL returns URL when set, otherwise an amqp URL assembled from
// the discrete host and credential settings.
func (r RabbitMQConfig) ConnectionURL() string {
	if r.URL != "" {
		return r.URL
	}

	path := "/"
	if r.VHost != "" && r.VHost != "/" {
		path = "/" + url.PathEscape(r.VHost)
	}

	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.Username, r.Password),
		Host:   net.JoinHostPort(r.Host, strconv.Itoa(r.Port)),
		Path:   path,
	}
	return u.String()
}
