package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

const receiveRetryDelay = time.Second

// sqsAPI is the subset of the SQS client the broker uses.
type sqsAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, opts ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, in *sqs.CreateQueueInput, opts ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSBroker maps the broker contract onto SQS: ack and reject delete the
// message, a requeue makes it visible again immediately.
type SQSBroker struct {
	client  sqsAPI
	config  *config.SQSConfig
	logger  ports.Logger
	metrics ports.Metrics

	mu        sync.Mutex
	queueURLs map[string]string
	batchSize int32
	settled   chan struct{}
}

func NewSQSBroker(cfg *config.SQSConfig, obs ports.Observability) (*SQSBroker, error) {
	logger, metrics, err := obs.ComponentsScoped("queue.sqs")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	return &SQSBroker{
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
		queueURLs: make(map[string]string),
		batchSize: 1,
		settled:   make(chan struct{}, 1),
	}, nil
}

// newSQSBrokerWithClient builds a broker around an existing client.
func newSQSBrokerWithClient(client sqsAPI, cfg *config.SQSConfig, logger ports.Logger, metrics ports.Metrics) *SQSBroker {
	return &SQSBroker{
		client:    client,
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
		queueURLs: make(map[string]string),
		batchSize: 1,
		settled:   make(chan struct{}, 1),
	}
}

func (b *SQSBroker) Connect(ctx context.Context) error {
	if b.client != nil {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.config.Region))
	if err != nil {
		b.logger.Error("failed to load AWS config", "error", err)
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	b.client = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if b.config.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.config.Endpoint)
		}
	})

	b.logger.Info("SQS client initialized", "region", b.config.Region, "endpoint", b.config.Endpoint)
	return nil
}

// DeclareQueue resolves the queue URL, creating the queue when it does not
// exist yet. SQS queues are always durable; the prefetch becomes the
// receive batch size.
func (b *SQSBroker) DeclareQueue(ctx context.Context, spec ports.QueueSpec) error {
	if _, err := b.queueURL(ctx, spec.Name, true); err != nil {
		return err
	}

	if spec.Prefetch > 0 {
		b.batchSize = int32(min(spec.Prefetch, 10))
	}

	b.logger.Info("queue declared", "queue", spec.Name, "prefetch", spec.Prefetch)
	return nil
}

// Consume long-polls the queue and hands out one message at a time. The
// next receive happens only after the current delivery has been settled.
func (b *SQSBroker) Consume(ctx context.Context, queue string) (<-chan ports.Delivery, error) {
	url, err := b.queueURL(ctx, queue, false)
	if err != nil {
		return nil, err
	}

	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			result, err := b.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(url),
				MaxNumberOfMessages: b.batchSize,
				WaitTimeSeconds:     int32(b.config.WaitTime / time.Second),
				MessageSystemAttributeNames: []types.MessageSystemAttributeName{
					types.MessageSystemAttributeNameApproximateReceiveCount,
					types.MessageSystemAttributeNameSentTimestamp,
				},
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logger.Error("failed to receive messages", "error", err, "queue", queue)
				b.metrics.IncrementCounter("receive.error", map[string]string{"queue": queue})
				select {
				case <-time.After(receiveRetryDelay):
					continue
				case <-ctx.Done():
					return
				}
			}

			for _, msg := range result.Messages {
				select {
				case out <- sqsToDelivery(msg, url):
				case <-ctx.Done():
					return
				}
				select {
				case <-b.settled:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *SQSBroker) Ack(ctx context.Context, d ports.Delivery) error {
	defer b.markSettled()
	return b.deleteMessage(ctx, d)
}

func (b *SQSBroker) Reject(ctx context.Context, d ports.Delivery) error {
	defer b.markSettled()
	return b.deleteMessage(ctx, d)
}

// Nack with requeue resets the visibility timeout so the message is
// redelivered immediately; without requeue the message is dropped.
func (b *SQSBroker) Nack(ctx context.Context, d ports.Delivery, requeue bool) error {
	defer b.markSettled()
	if !requeue {
		return b.deleteMessage(ctx, d)
	}

	url, err := b.deliveryQueueURL(d)
	if err != nil {
		return err
	}
	_, err = b.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(url),
		ReceiptHandle:     aws.String(d.Receipt),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to requeue message %s: %w", d.ID, err)
	}
	return nil
}

func (b *SQSBroker) Publish(ctx context.Context, queue string, body []byte) error {
	startTime := time.Now()
	defer func() {
		b.metrics.RecordHistogram("publish.duration_ms",
			float64(time.Since(startTime).Milliseconds()),
			map[string]string{"queue": queue})
	}()

	url, err := b.queueURL(ctx, queue, false)
	if err != nil {
		b.metrics.IncrementCounter("publish.error", map[string]string{"queue": queue, "error": "queue_url_failed"})
		return err
	}

	result, err := b.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		b.logger.Error("failed to send message", "error", err, "queue", queue)
		b.metrics.IncrementCounter("publish.error", map[string]string{"queue": queue, "error": "send_failed"})
		return fmt.Errorf("failed to send message: %w", err)
	}

	b.logger.Info("message published", "queue", queue, "message_id", aws.ToString(result.MessageId), "size", len(body))
	b.metrics.IncrementCounter("publish.success", map[string]string{"queue": queue})
	return nil
}

// Close is a no-op; the SQS client holds no connection of its own.
func (b *SQSBroker) Close() error {
	return nil
}

func (b *SQSBroker) deleteMessage(ctx context.Context, d ports.Delivery) error {
	url, err := b.deliveryQueueURL(d)
	if err != nil {
		return err
	}
	_, err = b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(d.Receipt),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", d.ID, err)
	}
	return nil
}

func (b *SQSBroker) markSettled() {
	select {
	case b.settled <- struct{}{}:
	default:
	}
}

func (b *SQSBroker) queueURL(ctx context.Context, name string, create bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if url, ok := b.queueURLs[name]; ok {
		return url, nil
	}
	if b.client == nil {
		return "", fmt.Errorf("sqs broker is not connected")
	}

	result, err := b.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err == nil {
		b.queueURLs[name] = aws.ToString(result.QueueUrl)
		return b.queueURLs[name], nil
	}

	var missing *types.QueueDoesNotExist
	if !create || !errors.As(err, &missing) {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", name, err)
	}

	created, err := b.client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to create queue %s: %w", name, err)
	}
	b.logger.Info("queue created", "queue", name)

	b.queueURLs[name] = aws.ToString(created.QueueUrl)
	return b.queueURLs[name], nil
}

func (b *SQSBroker) deliveryQueueURL(d ports.Delivery) (string, error) {
	if url := d.Headers["queue_url"]; url != "" {
		return url, nil
	}
	return "", fmt.Errorf("delivery %s carries no queue url", d.ID)
}

func sqsToDelivery(msg types.Message, queueURL string) ports.Delivery {
	headers := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		headers[k] = v
	}
	headers["queue_url"] = queueURL

	d := ports.Delivery{
		ID:      aws.ToString(msg.MessageId),
		Receipt: aws.ToString(msg.ReceiptHandle),
		Body:    []byte(aws.ToString(msg.Body)),
		Headers: headers,
	}

	if count, err := strconv.Atoi(msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
		d.Redelivered = count > 1
	}
	if sent, err := strconv.ParseInt(msg.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)], 10, 64); err == nil {
		d.Timestamp = time.UnixMilli(sent)
	}
	return d
}
