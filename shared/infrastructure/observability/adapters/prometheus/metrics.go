package prometheus

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mangadownloader/shared/application/ports"
)

// Metrics implements ports.Metrics with Prometheus collectors registered on
// a private registry. Label names of a metric are fixed by its first use;
// later samples fill missing labels with "" and drop unknown ones.
type Metrics struct {
	namespace   string
	defaultTags map[string]string
	vecs        *vecStore
}

type vecStore struct {
	mu         sync.Mutex
	registry   *prometheus.Registry
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
	gauges     map[string]*gaugeEntry
}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

type gaugeEntry struct {
	vec    *prometheus.GaugeVec
	labels []string
}

// NewMetrics creates Prometheus metrics prefixed with namespace, typically
// the service name.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		namespace:   sanitizeName(namespace),
		defaultTags: map[string]string{},
		vecs: &vecStore{
			registry:   registry,
			counters:   make(map[string]*counterEntry),
			histograms: make(map[string]*histogramEntry),
			gauges:     make(map[string]*gaugeEntry),
		},
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.vecs.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.vecs.registry
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	merged := m.mergeTags(tags)
	entry := m.vecs.counter(m.fullName(name)+"_total", labelNames(merged))
	if entry == nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, merged)).Inc()
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	merged := m.mergeTags(tags)
	entry := m.vecs.histogram(m.fullName(name), labelNames(merged))
	if entry == nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, merged)).Observe(value)
}

func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	merged := m.mergeTags(tags)
	entry := m.vecs.gauge(m.fullName(name), labelNames(merged))
	if entry == nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, merged)).Set(value)
}

func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{
		namespace:   m.namespace,
		defaultTags: m.mergeTags(tags),
		vecs:        m.vecs,
	}
}

func (s *vecStore) counter(name string, labels []string) *counterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.counters[name]; ok {
		return entry
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	entry := &counterEntry{vec: vec, labels: labels}
	s.counters[name] = entry
	return entry
}

func (s *vecStore) histogram(name string, labels []string) *histogramEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.histograms[name]; ok {
		return entry
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    name,
		Buckets: prometheus.DefBuckets,
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	s.histograms[name] = entry
	return entry
}

func (s *vecStore) gauge(name string, labels []string) *gaugeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.gauges[name]; ok {
		return entry
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	entry := &gaugeEntry{vec: vec, labels: labels}
	s.gauges[name] = entry
	return entry
}

func (m *Metrics) fullName(name string) string {
	if m.namespace == "" {
		return sanitizeName(name)
	}
	return m.namespace + "_" + sanitizeName(name)
}

func (m *Metrics) mergeTags(tags map[string]string) map[string]string {
	merged := make(map[string]string, len(m.defaultTags)+len(tags))
	for k, v := range m.defaultTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, sanitizeName(k))
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags map[string]string) prometheus.Labels {
	sanitized := make(map[string]string, len(tags))
	for k, v := range tags {
		sanitized[sanitizeName(k)] = v
	}

	labels := make(prometheus.Labels, len(names))
	for _, name := range names {
		labels[name] = sanitized[name]
	}
	return labels
}

// sanitizeName maps dotted metric names such as "rabbitmq.ack" onto the
// Prometheus charset.
func sanitizeName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
