package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPoisonMessage marks a delivery whose body can never be processed.
	// Consumers reject such deliveries without requeue.
	ErrPoisonMessage = errors.New("poison message")

	// ErrDeliveriesClosed is returned when the broker stops delivering
	// while the consumer is still running.
	ErrDeliveriesClosed = errors.New("delivery channel closed by broker")
)

// QueueSpec describes the queue a consumer declares before consuming.
type QueueSpec struct {
	Name       string
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	// Prefetch bounds the number of unsettled deliveries per consumer.
	Prefetch int
}

// Delivery is a single message handed out by a Broker. It must be settled
// with exactly one of Ack, Nack or Reject.
type Delivery struct {
	ID          string
	Tag         uint64
	Receipt     string
	Body        []byte
	Redelivered bool
	Timestamp   time.Time
	Headers     map[string]string
}

// Broker abstracts the message broker the worker consumes from.
type Broker interface {
	// Connect opens the connection and channel. Failure is fatal to the caller.
	Connect(ctx context.Context) error

	// DeclareQueue declares the queue idempotently and applies its prefetch.
	DeclareQueue(ctx context.Context, spec QueueSpec) error

	// Consume starts delivering messages with manual acknowledgement. The
	// returned channel is closed when the broker stops delivering.
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)

	Ack(ctx context.Context, d Delivery) error
	Nack(ctx context.Context, d Delivery, requeue bool) error
	Reject(ctx context.Context, d Delivery) error

	// Publish sends a persistent message body to the named queue.
	Publish(ctx context.Context, queue string, body []byte) error

	// Close releases the channel and then the connection.
	Close() error
}
