package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

// handles Lambda runtime integration for SQS triggers
type lambdaRuntime struct {
	handler ports.Handler
	logger  ports.Logger
	metrics ports.Metrics
	config  *config.LambdaConfig
}

// NewLambdaRuntime creates a new Lambda runtime
func NewLambdaRuntime(cfg *config.LambdaConfig, handler ports.Handler, obs ports.Observability) (ports.Runtime, error) {
	logger, metrics, err := obs.ComponentsScoped("runtime.lambda")
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: observability was not initialized: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("failed to create runtime: handler is required")
	}

	return &lambdaRuntime{
		handler: handler,
		logger:  logger,
		metrics: metrics,
		config:  cfg,
	}, nil
}

// Start hands control to the Lambda runtime; it does not return under Lambda.
func (runtime *lambdaRuntime) Start(ctx context.Context) error {
	runtime.logger.Info("Starting Lambda runtime")
	runtime.metrics.IncrementCounter("lambda.starts", nil)

	lambda.StartWithOptions(runtime.handleEvent, lambda.WithContext(ctx))
	return nil
}

func (runtime *lambdaRuntime) Stop(ctx context.Context) error {
	return nil
}

// handleEvent is the main Lambda entry point
func (runtime *lambdaRuntime) handleEvent(ctx context.Context, event json.RawMessage) (interface{}, error) {
	startTime := time.Now()
	runtime.metrics.IncrementCounter("lambda.invocations", nil)
	defer func() {
		runtime.metrics.RecordHistogram("lambda.duration_ms",
			float64(time.Since(startTime).Milliseconds()), nil)
	}()

	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(event, &sqsEvent); err != nil || len(sqsEvent.Records) == 0 {
		runtime.logger.Error("Unsupported event type", "event_size", len(event))
		runtime.metrics.IncrementCounter("lambda.invocations.unsupported", nil)
		return nil, fmt.Errorf("unsupported event type")
	}

	return runtime.processSQSEvent(ctx, sqsEvent)
}

// --- SQS Event Processing ---

// processSQSEvent runs each record through the handler in order. A
// retryable failure becomes a batch item failure; an undecodable record is
// dropped.
func (runtime *lambdaRuntime) processSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	batch := newBatchProcessor(runtime.handler, runtime.logger, runtime.config)

	runtime.logger.Info("Processing SQS batch",
		"batch_size", len(event.Records),
		"source", event.Records[0].EventSource)
	runtime.metrics.RecordHistogram("lambda.batch_size", float64(len(event.Records)), nil)

	response := batch.process(ctx, event)
	stats := batch.stats

	runtime.logger.Info("SQS batch processing complete",
		"total_messages", stats.totalCount,
		"success_count", stats.successCount,
		"dropped_count", stats.droppedCount,
		"failure_count", stats.failureCount,
		"partial_batch_enabled", runtime.config.EnablePartialBatchFailure)
	runtime.recordBatchResults(stats)

	return response, batch.err()
}

// batchProcessor encapsulates batch processing logic
type batchProcessor struct {
	handler  ports.Handler
	logger   ports.Logger
	config   *config.LambdaConfig
	stats    batchStats
	response events.SQSEventResponse
}

type batchStats struct {
	successCount int
	droppedCount int
	failureCount int
	totalCount   int
}

func newBatchProcessor(h ports.Handler, logger ports.Logger, cfg *config.LambdaConfig) *batchProcessor {
	return &batchProcessor{
		handler: h,
		logger:  logger,
		config:  cfg,
		response: events.SQSEventResponse{
			BatchItemFailures: []events.SQSBatchItemFailure{},
		},
	}
}

func (b *batchProcessor) process(ctx context.Context, event events.SQSEvent) events.SQSEventResponse {
	b.stats.totalCount = len(event.Records)

	for i, record := range event.Records {
		b.processMessage(ctx, record, i)
	}

	return b.response
}

func (b *batchProcessor) processMessage(ctx context.Context, record events.SQSMessage, index int) {
	b.logger.Info("Processing SQS message",
		"message_id", record.MessageId,
		"position", index+1,
		"total", b.stats.totalCount)

	reqCtx := ctx
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	_, err := b.handler.Handle(reqCtx, convertToRequest(record))

	switch {
	case err == nil:
		b.stats.successCount++
	case errors.Is(err, ports.ErrPoisonMessage):
		b.stats.droppedCount++
		b.logger.Error("Dropping undecodable message",
			"message_id", record.MessageId,
			"error", err)
	default:
		b.stats.failureCount++
		b.logger.Error("Message processing failed",
			"message_id", record.MessageId,
			"error", err)
		b.response.BatchItemFailures = append(b.response.BatchItemFailures,
			events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
}

// err fails the whole invocation when partial batch responses are disabled,
// so SQS redelivers every record.
func (b *batchProcessor) err() error {
	if !b.config.EnablePartialBatchFailure && b.stats.failureCount > 0 {
		return fmt.Errorf("batch processing failed: %d/%d messages failed",
			b.stats.failureCount, b.stats.totalCount)
	}
	return nil
}

func convertToRequest(record events.SQSMessage) ports.RuntimeRequest {
	metadata := make(map[string]string, len(record.MessageAttributes)+2)
	for key, attr := range record.MessageAttributes {
		if attr.StringValue != nil {
			metadata[key] = *attr.StringValue
		}
	}
	metadata["sqs_message_id"] = record.MessageId
	metadata["sqs_receive_count"] = record.Attributes["ApproximateReceiveCount"]

	return ports.RuntimeRequest{
		ID:        record.MessageId,
		Source:    "sqs",
		Type:      "job",
		Payload:   json.RawMessage(record.Body),
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

func (runtime *lambdaRuntime) recordBatchResults(stats batchStats) {
	runtime.metrics.RecordHistogram("lambda.batch.failure_count", float64(stats.failureCount), nil)

	switch {
	case stats.failureCount == 0:
		runtime.metrics.IncrementCounter("lambda.batch.complete_success", nil)
	case stats.failureCount == stats.totalCount:
		runtime.metrics.IncrementCounter("lambda.batch.complete_failure", nil)
	default:
		runtime.metrics.IncrementCounter("lambda.batch.partial_failure", nil)
	}
}
