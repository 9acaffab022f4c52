package cloudwatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

const (
	metricBatchSize     = 20
	metricFlushInterval = 10 * time.Second
)

type metricsAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// metricSink owns the buffer; every Metrics derived with WithTags feeds it.
type metricSink struct {
	client    metricsAPI
	namespace string
	data      chan types.MetricDatum
}

// Metrics implements ports.Metrics using AWS CloudWatch Metrics
type Metrics struct {
	sink        *metricSink
	defaultTags map[string]string
}

// NewMetrics creates a new CloudWatch metrics client
func NewMetrics(ctx context.Context, cfg *config.Config) (*Metrics, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.Observability.CloudWatchRegion)
	if err != nil {
		return nil, err
	}
	return newMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.CloudWatchNamespace), nil
}

func newMetrics(client metricsAPI, namespace string) *Metrics {
	sink := &metricSink{
		client:    client,
		namespace: namespace,
		data:      make(chan types.MetricDatum, 100),
	}
	go sink.run()

	return &Metrics{sink: sink, defaultTags: map[string]string{}}
}

// WithTags returns a new Metrics instance with additional default tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{sink: m.sink, defaultTags: m.mergeTags(tags)}
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	m.record(name, 1, types.StandardUnitCount, tags)
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.record(name, value, types.StandardUnitNone, tags)
}

func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.record(name, value, types.StandardUnitNone, tags)
}

func (m *Metrics) record(name string, value float64, unit types.StandardUnit, tags map[string]string) {
	merged := m.mergeTags(tags)

	datum := types.MetricDatum{
		MetricName: aws.String(buildMetricName(name, merged)),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: tagsToDimensions(merged),
	}

	select {
	case m.sink.data <- datum:
	default:
		// buffer full, drop metric
	}
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

// buildMetricName prefixes the metric name with the component tag if present
func buildMetricName(name string, tags map[string]string) string {
	if component, ok := tags["component"]; ok && component != "" {
		return fmt.Sprintf("%s.%s", component, name)
	}
	return name
}

// tagsToDimensions converts tags to CloudWatch dimensions
func tagsToDimensions(tags map[string]string) []types.Dimension {
	dimensions := make([]types.Dimension, 0, len(tags))
	for name, value := range tags {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	return dimensions
}

func (s *metricSink) run() {
	ticker := time.NewTicker(metricFlushInterval)
	defer ticker.Stop()

	buffer := make([]types.MetricDatum, 0, metricBatchSize)
	for {
		select {
		case datum := <-s.data:
			buffer = append(buffer, datum)
			if len(buffer) >= metricBatchSize {
				s.flush(buffer)
				buffer = make([]types.MetricDatum, 0, metricBatchSize)
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				s.flush(buffer)
				buffer = make([]types.MetricDatum, 0, metricBatchSize)
			}
		}
	}
}

func (s *metricSink) flush(data []types.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: data,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch: failed to put %d metrics: %v\n", len(data), err)
	}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if region == "" {
		return aws.Config{}, fmt.Errorf("no AWS region specified for CloudWatch")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
