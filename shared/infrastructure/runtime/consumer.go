package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"mangadownloader/shared/application/ports"
)

// ConsumerPrefetch is the number of unsettled deliveries a consumer holds.
// It is fixed: one job in flight per instance.
const ConsumerPrefetch = 1

// consumerRuntime drives a Handler from a durable broker queue, one
// delivery at a time with manual acknowledgement.
type consumerRuntime struct {
	broker  ports.Broker
	queue   string
	handler ports.Handler
	logger  ports.Logger
	metrics ports.Metrics
	ops     *OpsServer

	consuming atomic.Bool
}

// NewConsumerRuntime creates a runtime consuming queue through broker. ops
// is optional; when given it is started and stopped with the consumer and
// reports its health.
func NewConsumerRuntime(broker ports.Broker, queue string, handler ports.Handler, ops *OpsServer, obs ports.Observability) (ports.Runtime, error) {
	logger, metrics, err := obs.ComponentsScoped("runtime.consumer")
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: observability was not initialized: %w", err)
	}
	if broker == nil {
		return nil, fmt.Errorf("failed to create runtime: broker is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("failed to create runtime: handler is required")
	}

	c := &consumerRuntime{
		broker:  broker,
		queue:   queue,
		handler: handler,
		logger:  logger.WithFields(map[string]interface{}{"queue": queue}),
		metrics: metrics,
		ops:     ops,
	}
	if ops != nil {
		ops.SetHealthCheck(c.health)
	}
	return c, nil
}

func (c *consumerRuntime) QueueSpec() ports.QueueSpec {
	return ports.QueueSpec{
		Name:       c.queue,
		Durable:    true,
		Exclusive:  false,
		AutoDelete: false,
		Prefetch:   ConsumerPrefetch,
	}
}

// Start connects, declares the queue and processes deliveries until ctx is
// cancelled. It returns ports.ErrDeliveriesClosed when the broker stops
// delivering on its own.
func (c *consumerRuntime) Start(ctx context.Context) error {
	if err := c.broker.Connect(ctx); err != nil {
		c.logger.Error("Failed to connect to broker", "error", err)
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	if err := c.broker.DeclareQueue(ctx, c.QueueSpec()); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	deliveries, err := c.broker.Consume(ctx, c.queue)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	if c.ops != nil {
		if err := c.ops.Start(); err != nil {
			return err
		}
	}

	c.consuming.Store(true)
	defer c.consuming.Store(false)

	c.logger.Info("Consumer started", "prefetch", ConsumerPrefetch)
	c.metrics.IncrementCounter("consumer.starts", nil)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping", "reason", ctx.Err())
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Broker closed the delivery stream")
				c.metrics.IncrementCounter("consumer.stream_closed", nil)
				return ports.ErrDeliveriesClosed
			}
			c.processDelivery(ctx, d)
		}
	}
}

// Stop releases the broker connection. Close errors are logged only.
func (c *consumerRuntime) Stop(ctx context.Context) error {
	if c.ops != nil {
		if err := c.ops.Stop(ctx); err != nil {
			c.logger.Error("Failed to stop ops server", "error", err)
		}
	}

	if err := c.broker.Close(); err != nil {
		c.logger.Error("Failed to close broker connection", "error", err)
	}
	c.logger.Info("Consumer stopped")
	return nil
}

func (c *consumerRuntime) processDelivery(ctx context.Context, d ports.Delivery) {
	startTime := time.Now()
	req := c.toRequest(d)

	c.logger.Info("Processing delivery",
		"message_id", req.ID,
		"redelivered", d.Redelivered,
		"size", len(d.Body))
	c.metrics.IncrementCounter("consumer.messages", nil)

	resp, err := c.handler.Handle(ctx, req)

	// Settlement must reach the broker even when shutdown cancelled ctx.
	settleCtx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		c.settle("ack", req.ID, c.broker.Ack(settleCtx, d))
		c.logger.Info("Delivery acknowledged",
			"message_id", req.ID,
			"outcome", resp.Outcome,
			"duration_ms", time.Since(startTime).Milliseconds())

	case errors.Is(err, ports.ErrPoisonMessage):
		c.settle("reject", req.ID, c.broker.Reject(settleCtx, d))
		c.logger.Error("Rejected undecodable delivery",
			"message_id", req.ID,
			"error", err)

	default:
		c.settle("requeue", req.ID, c.broker.Nack(settleCtx, d, true))
		c.logger.Error("Delivery failed, requeued",
			"message_id", req.ID,
			"error", err)
	}

	c.metrics.RecordHistogram("consumer.duration_ms",
		float64(time.Since(startTime).Milliseconds()), nil)
}

func (c *consumerRuntime) settle(action, id string, err error) {
	if err != nil {
		c.logger.Error("Failed to settle delivery", "action", action, "message_id", id, "error", err)
		c.metrics.IncrementCounter("consumer.settle_errors", map[string]string{"action": action})
		return
	}
	c.metrics.IncrementCounter("consumer.settled", map[string]string{"action": action})
}

func (c *consumerRuntime) toRequest(d ports.Delivery) ports.RuntimeRequest {
	metadata := make(map[string]string, len(d.Headers)+1)
	for k, v := range d.Headers {
		metadata[k] = v
	}
	metadata["redelivered"] = strconv.FormatBool(d.Redelivered)

	req := ports.RuntimeRequest{
		ID:        d.ID,
		Source:    "queue",
		Type:      c.queue,
		Payload:   json.RawMessage(d.Body),
		Metadata:  metadata,
		Timestamp: d.Timestamp,
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("delivery-%d", d.Tag)
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	return req
}

func (c *consumerRuntime) health() error {
	if !c.consuming.Load() {
		return fmt.Errorf("consumer is not running")
	}
	return nil
}
