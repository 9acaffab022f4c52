package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mangadownloader/shared/application/ports"
	"mangadownloader/workers/downloader/internal/domain"
)

const defaultNotifyTimeout = 100 * time.Second

// NotificationClient posts completed chapters to the downstream update API.
type NotificationClient struct {
	endpoint string
	timeout  time.Duration
	logger   ports.Logger
	metrics  ports.Metrics
}

var _ domain.Notifier = (*NotificationClient)(nil)

func NewNotificationClient(endpoint string, timeout time.Duration, logger ports.Logger, metrics ports.Metrics) *NotificationClient {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &NotificationClient{
		endpoint: endpoint,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Notify sends payload as JSON. Each call uses its own client.
func (c *NotificationClient) Notify(ctx context.Context, payload domain.NotificationPayload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: c.timeout}

	startTime := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error("Notification request failed", "endpoint", c.endpoint, "error", err)
		c.metrics.IncrementCounter("notify.errors", map[string]string{"class": "transport"})
		return 0, fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHistogram("notify.duration_ms", float64(time.Since(startTime).Milliseconds()), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Notification rejected",
			"endpoint", c.endpoint,
			"status", resp.StatusCode,
			"chapter", payload.ChapterLabel(),
			"title", payload.Title())
		c.metrics.IncrementCounter("notify.errors", map[string]string{"class": statusClass(resp.StatusCode)})
		return resp.StatusCode, domain.ErrNotificationRejected.Wrap(
			fmt.Sprintf("POST %s returned %d", c.endpoint, resp.StatusCode), nil)
	}

	c.logger.Info("Notification sent",
		"endpoint", c.endpoint,
		"status", resp.StatusCode,
		"chapter", payload.ChapterLabel(),
		"title", payload.Title())
	c.metrics.IncrementCounter("notify.success", nil)
	return resp.StatusCode, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// NoopNotifier is used when no endpoint is configured.
type NoopNotifier struct {
	logger ports.Logger
}

func NewNoopNotifier(logger ports.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Notify(ctx context.Context, payload domain.NotificationPayload) (int, error) {
	n.logger.Debug("Notifications disabled, skipping", "chapter", payload.ChapterLabel(), "title", payload.Title())
	return 0, nil
}

// NewNotifier returns a NotificationClient, or a NoopNotifier when endpoint
// is empty.
func NewNotifier(endpoint string, timeout time.Duration, obs ports.Observability) (domain.Notifier, error) {
	logger, metrics, err := obs.ComponentsScoped("notifier")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	if endpoint == "" {
		logger.Info("Notifications disabled: no endpoint configured")
		return NewNoopNotifier(logger), nil
	}
	return NewNotificationClient(endpoint, timeout, logger, metrics), nil
}
