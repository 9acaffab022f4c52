package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"mangadownloader/shared/application/ports"
)

// Middleware wraps a Handler with cross-cutting behaviour.
type Middleware func(next ports.Handler) ports.Handler

// Chain applies middlewares so that the first one listed runs outermost.
func Chain(h ports.Handler, middlewares ...Middleware) ports.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ErrPanic wraps a panic recovered from a handler. It is retryable.
var ErrPanic = errors.New("panic recovered")

// RecoveryMiddleware turns a handler panic into an ordinary error so the
// message is requeued rather than taking the process down.
func RecoveryMiddleware(logger ports.Logger) Middleware {
	return func(next ports.Handler) ports.Handler {
		return ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (resp ports.RuntimeResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic recovered",
						"request_id", req.ID,
						"panic", fmt.Sprintf("%v", r),
						"stack", string(debug.Stack()))

					err = fmt.Errorf("%w: %v", ErrPanic, r)
					resp = ports.RuntimeResponse{Success: false, Error: err.Error()}
				}
			}()

			return next.Handle(ctx, req)
		})
	}
}

func LoggingMiddleware(logger ports.Logger) Middleware {
	return func(next ports.Handler) ports.Handler {
		return ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
			start := time.Now()

			logger.Debug("Processing request",
				"request_id", req.ID,
				"source", req.Source,
				"payload_size", len(req.Payload))

			resp, err := next.Handle(ctx, req)

			duration := time.Since(start).Milliseconds()
			switch {
			case err != nil:
				logger.Error("Request failed",
					"request_id", req.ID,
					"duration_ms", duration,
					"error", err)
			default:
				logger.Info("Request completed",
					"request_id", req.ID,
					"outcome", resp.Outcome,
					"duration_ms", duration)
			}

			return resp, err
		})
	}
}

func MetricsMiddleware(metrics ports.Metrics) Middleware {
	return func(next ports.Handler) ports.Handler {
		return ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
			start := time.Now()
			metrics.IncrementCounter("handler.requests", map[string]string{"source": req.Source})

			resp, err := next.Handle(ctx, req)

			metrics.RecordHistogram("handler.duration_ms",
				float64(time.Since(start).Milliseconds()),
				map[string]string{"source": req.Source})

			switch {
			case errors.Is(err, ports.ErrPoisonMessage):
				metrics.IncrementCounter("handler.errors", map[string]string{"source": req.Source, "kind": "poison"})
			case err != nil:
				metrics.IncrementCounter("handler.errors", map[string]string{"source": req.Source, "kind": "retryable"})
			default:
				metrics.IncrementCounter("handler.outcomes", map[string]string{"source": req.Source, "outcome": resp.Outcome})
			}

			return resp, err
		})
	}
}

// WithDefaultMiddleware wraps h with recovery, logging and metrics, scoped
// to the "runtime.handler" component.
func WithDefaultMiddleware(h ports.Handler, obs ports.Observability) (ports.Handler, error) {
	logger, metrics, err := obs.ComponentsScoped("runtime.handler")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	return Chain(h,
		RecoveryMiddleware(logger),
		MetricsMiddleware(metrics),
		LoggingMiddleware(logger),
	), nil
}
