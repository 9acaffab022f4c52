package stdout

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", false)

	logger.WithFields(map[string]interface{}{"component": "pipeline"}).
		Error("transfer failed", "title", "Solo", "error", errors.New("status 404"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, "transfer failed", entries[0]["message"])
	assert.Equal(t, "pipeline", entries[0]["component"])
	assert.Equal(t, "Solo", entries[0]["title"])
	assert.Equal(t, "status 404", entries[0]["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		entries int
	}{
		{name: "debug shows everything", level: "debug", entries: 4},
		{name: "warn hides debug and info", level: "warn", entries: 2},
		{name: "invalid falls back to info", level: "verbose", entries: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level, false)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			assert.Len(t, decodeLines(t, &buf), tt.entries)
		})
	}
}

func TestFieldsToMap_OddLength(t *testing.T) {
	fields := fieldsToMap([]interface{}{"queue", "download_queue", "dangling"})

	assert.Equal(t, "download_queue", fields["queue"])
	assert.Equal(t, "", fields["dangling"])
}

func TestMetrics_CountersShareStorageAcrossScopes(t *testing.T) {
	root := NewMetrics(NewLogger(io.Discard, "error", false))
	scoped := root.WithTags(map[string]string{"component": "pipeline"})

	scoped.IncrementCounter("jobs.completed", map[string]string{"table": "flame_scans"})
	scoped.IncrementCounter("jobs.completed", map[string]string{"table": "asura_scans"})
	root.IncrementCounter("jobs.completed", nil)
	scoped.RecordHistogram("jobs.duration", 1.5, nil)

	assert.Equal(t, int64(3), root.GetCounter("jobs.completed"))
	assert.Equal(t, int64(1), scoped.(*Metrics).GetCounterWithTags("jobs.completed", map[string]string{"table": "flame_scans"}))
	assert.Equal(t, 1, root.HistogramCount("jobs.duration"))
	assert.Equal(t, int64(0), root.GetCounter("jobs.failed"))
}
