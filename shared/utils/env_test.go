package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		expected     string
	}{
		{name: "environment variable set", envValue: "download_queue", defaultValue: "default", expected: "download_queue"},
		{name: "environment variable not set", envValue: "", defaultValue: "default", expected: "default"},
		{name: "whitespace only returns default", envValue: "   ", defaultValue: "fallback", expected: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_QUEUE_NAME", tt.envValue)
			assert.Equal(t, tt.expected, GetEnv("TEST_QUEUE_NAME", tt.defaultValue))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{name: "valid integer", envValue: "5672", expected: 5672},
		{name: "negative integer", envValue: "-1", expected: -1},
		{name: "invalid integer returns default", envValue: "five", expected: 42},
		{name: "empty returns default", envValue: "", expected: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_PORT", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvInt("TEST_PORT", 42))
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Run("parses byte sizes beyond int32", func(t *testing.T) {
		t.Setenv("TEST_MIN_SIZE", "5368709120")
		assert.Equal(t, int64(5368709120), GetEnvInt64("TEST_MIN_SIZE", 10*1024))
	})

	t.Run("invalid returns default", func(t *testing.T) {
		t.Setenv("TEST_MIN_SIZE", "15KiB")
		assert.Equal(t, int64(15*1024), GetEnvInt64("TEST_MIN_SIZE", 15*1024))
	})
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{name: "true", envValue: "true", defaultValue: false, expected: true},
		{name: "numeric one", envValue: "1", defaultValue: false, expected: true},
		{name: "false", envValue: "FALSE", defaultValue: true, expected: false},
		{name: "invalid returns default", envValue: "yes", defaultValue: true, expected: true},
		{name: "empty returns default", envValue: "", defaultValue: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_AUTO_MIGRATE", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvBool("TEST_AUTO_MIGRATE", tt.defaultValue))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{name: "seconds", envValue: "30s", expected: 30 * time.Second},
		{name: "complex duration", envValue: "1m40s", expected: 100 * time.Second},
		{name: "milliseconds", envValue: "500ms", expected: 500 * time.Millisecond},
		{name: "invalid returns default", envValue: "soon", expected: 100 * time.Second},
		{name: "empty returns default", envValue: "", expected: 100 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_NOTIFY_TIMEOUT", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvDuration("TEST_NOTIFY_TIMEOUT", 100*time.Second))
		})
	}
}
