package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

// RabbitMQBroker consumes and publishes over a single AMQP connection and
// channel. The connection belongs to the broker for its whole lifetime.
type RabbitMQBroker struct {
	config  *config.RabbitMQConfig
	logger  ports.Logger
	metrics ports.Metrics

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewRabbitMQBroker(cfg *config.RabbitMQConfig, obs ports.Observability) (*RabbitMQBroker, error) {
	logger, metrics, err := obs.ComponentsScoped("queue.rabbitmq")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	return &RabbitMQBroker{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (b *RabbitMQBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := amqp091.DialConfig(b.config.ConnectionURL(), amqp091.Config{
		Heartbeat: b.config.Heartbeat,
		Locale:    "en_US",
		Properties: amqp091.Table{
			"connection_name": "manga-downloader",
		},
	})
	if err != nil {
		b.logger.Error("failed to connect to RabbitMQ", "error", err, "host", b.config.Host)
		b.metrics.IncrementCounter("connect.error", nil)
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		b.logger.Error("failed to create channel", "error", err)
		return fmt.Errorf("failed to create channel: %w", err)
	}

	b.conn = conn
	b.channel = channel
	b.logger.Info("RabbitMQ connection established", "host", b.config.Host, "vhost", b.config.VHost)
	return nil
}

func (b *RabbitMQBroker) DeclareQueue(ctx context.Context, spec ports.QueueSpec) error {
	ch, err := b.openChannel()
	if err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		spec.Name,
		spec.Durable,
		spec.AutoDelete,
		spec.Exclusive,
		false, // no-wait
		nil,
	)
	if err != nil {
		b.logger.Error("failed to declare queue", "error", err, "queue", spec.Name)
		return fmt.Errorf("failed to declare queue %s: %w", spec.Name, err)
	}

	if spec.Prefetch > 0 {
		if err := ch.Qos(spec.Prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	b.logger.Info("queue declared",
		"queue", spec.Name,
		"durable", spec.Durable,
		"prefetch", spec.Prefetch)
	return nil
}

func (b *RabbitMQBroker) Consume(ctx context.Context, queue string) (<-chan ports.Delivery, error) {
	ch, err := b.openChannel()
	if err != nil {
		return nil, err
	}

	tag := "downloader-" + uuid.NewString()
	msgs, err := ch.Consume(
		queue,
		tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}

	b.logger.Info("consumer registered", "queue", queue, "consumer_tag", tag)

	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- toDelivery(msg):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *RabbitMQBroker) Ack(ctx context.Context, d ports.Delivery) error {
	ch, err := b.openChannel()
	if err != nil {
		return err
	}
	if err := ch.Ack(d.Tag, false); err != nil {
		return fmt.Errorf("failed to ack delivery %d: %w", d.Tag, err)
	}
	return nil
}

func (b *RabbitMQBroker) Nack(ctx context.Context, d ports.Delivery, requeue bool) error {
	ch, err := b.openChannel()
	if err != nil {
		return err
	}
	if err := ch.Nack(d.Tag, false, requeue); err != nil {
		return fmt.Errorf("failed to nack delivery %d: %w", d.Tag, err)
	}
	return nil
}

func (b *RabbitMQBroker) Reject(ctx context.Context, d ports.Delivery) error {
	ch, err := b.openChannel()
	if err != nil {
		return err
	}
	if err := ch.Reject(d.Tag, false); err != nil {
		return fmt.Errorf("failed to reject delivery %d: %w", d.Tag, err)
	}
	return nil
}

func (b *RabbitMQBroker) Publish(ctx context.Context, queue string, body []byte) error {
	startTime := time.Now()
	defer func() {
		b.metrics.RecordHistogram("publish.duration_ms",
			float64(time.Since(startTime).Milliseconds()),
			map[string]string{"queue": queue})
	}()

	ch, err := b.openChannel()
	if err != nil {
		return err
	}

	msg := amqp091.Publishing{
		MessageId:    uuid.NewString(),
		DeliveryMode: amqp091.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	}

	err = ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		b.logger.Error("failed to publish message", "error", err, "queue", queue)
		b.metrics.IncrementCounter("publish.error", map[string]string{"queue": queue})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	b.logger.Info("message published", "queue", queue, "message_id", msg.MessageId, "size", len(body))
	b.metrics.IncrementCounter("publish.success", map[string]string{"queue": queue})
	return nil
}

// Close closes the channel, then the connection. Both are attempted even
// when the first fails.
func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.channel != nil {
		if err := b.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		b.channel = nil
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		b.conn = nil
	}
	return errors.Join(errs...)
}

func (b *RabbitMQBroker) openChannel() (*amqp091.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel == nil {
		return nil, fmt.Errorf("rabbitmq broker is not connected")
	}
	return b.channel, nil
}

func toDelivery(msg amqp091.Delivery) ports.Delivery {
	headers := make(map[string]string, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = fmt.Sprintf("%v", v)
	}
	if msg.RoutingKey != "" {
		headers["routing_key"] = msg.RoutingKey
	}
	if msg.CorrelationId != "" {
		headers["correlation_id"] = msg.CorrelationId
	}

	return ports.Delivery{
		ID:          msg.MessageId,
		Tag:         msg.DeliveryTag,
		Body:        msg.Body,
		Redelivered: msg.Redelivered,
		Timestamp:   msg.Timestamp,
		Headers:     headers,
	}
}
