package stdout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"mangadownloader/shared/application/ports"
)

// store is shared by a root Metrics and every instance derived with WithTags.
type store struct {
	mu         sync.RWMutex
	counters   map[string]int64
	totals     map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// Metrics implements ports.Metrics in memory and echoes every sample to the
// logger at debug level.
type Metrics struct {
	tags   map[string]string
	logger ports.Logger
	store  *store
}

// NewMetrics creates a new stdout metrics instance
func NewMetrics(logger ports.Logger) *Metrics {
	return &Metrics{
		tags:   make(map[string]string),
		logger: logger,
		store: &store{
			counters:   make(map[string]int64),
			totals:     make(map[string]int64),
			histograms: make(map[string][]float64),
			gauges:     make(map[string]float64),
		},
	}
}

// IncrementCounter increments a counter metric
func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	merged := m.mergeTags(tags)
	key := buildKey(name, merged)

	m.store.mu.Lock()
	m.store.counters[key]++
	m.store.totals[name]++
	value := m.store.counters[key]
	m.store.mu.Unlock()

	m.logger.Debug("metric", "type", "counter", "name", name, "value", value, "tags", merged)
}

// RecordHistogram records a histogram value
func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	merged := m.mergeTags(tags)
	key := buildKey(name, merged)

	m.store.mu.Lock()
	m.store.histograms[key] = append(m.store.histograms[key], value)
	m.store.mu.Unlock()

	m.logger.Debug("metric", "type", "histogram", "name", name, "value", value, "tags", merged)
}

// RecordGauge records a gauge value
func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	merged := m.mergeTags(tags)
	key := buildKey(name, merged)

	m.store.mu.Lock()
	m.store.gauges[key] = value
	m.store.mu.Unlock()

	m.logger.Debug("metric", "type", "gauge", "name", name, "value", value, "tags", merged)
}

// WithTags returns a new Metrics instance with additional tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{
		tags:   m.mergeTags(tags),
		logger: m.logger,
		store:  m.store,
	}
}

// GetCounter returns the value of a counter summed over every tag set
// (useful for testing).
func (m *Metrics) GetCounter(name string) int64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.totals[name]
}

// GetCounterWithTags returns the value of a counter for an exact tag set,
// including the default tags of this instance.
func (m *Metrics) GetCounterWithTags(name string, tags map[string]string) int64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.counters[buildKey(name, m.mergeTags(tags))]
}

// HistogramCount returns how many samples were recorded for name across all tag sets.
func (m *Metrics) HistogramCount(name string) int {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	count := 0
	for key, values := range m.store.histograms {
		if key == name || strings.HasPrefix(key, name+"{") {
			count += len(values)
		}
	}
	return count
}

func (m *Metrics) mergeTags(tags map[string]string) map[string]string {
	merged := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

func buildKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, tags[k]))
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}
