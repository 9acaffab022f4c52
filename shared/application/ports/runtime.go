package ports

import (
	"context"
	"encoding/json"
	"time"
)

type RuntimeRequest struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

func (r *RuntimeRequest) Unmarshal(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

type RuntimeResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler processes one request. A returned error wrapping ErrPoisonMessage
// means the request can never succeed; any other error is retryable.
type Handler interface {
	Handle(ctx context.Context, req RuntimeRequest) (RuntimeResponse, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req RuntimeRequest) (RuntimeResponse, error)

func (f HandlerFunc) Handle(ctx context.Context, req RuntimeRequest) (RuntimeResponse, error) {
	return f(ctx, req)
}

// Runtime drives a Handler from some event source until ctx is cancelled.
type Runtime interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
