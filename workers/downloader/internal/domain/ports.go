package domain

import (
	"context"
	"net/http"
)

// HTTPDoer is the part of *http.Client used to fetch pages.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier announces a stored chapter downstream. The status code is
// returned even when err is non-nil, zero when no response was received.
type Notifier interface {
	Notify(ctx context.Context, payload NotificationPayload) (int, error)
}
