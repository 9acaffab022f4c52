package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/testsupport"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next ports.Handler) ports.Handler {
			return ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
				order = append(order, name)
				return next.Handle(ctx, req)
			})
		}
	}

	h := Chain(ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
		order = append(order, "handler")
		return ports.RuntimeResponse{}, nil
	}), mark("outer"), mark("inner"))

	_, err := h.Handle(context.Background(), ports.RuntimeRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecoveryMiddleware_PanicBecomesRetryableError(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	logger, _ := obs.Logger()

	h := RecoveryMiddleware(logger)(ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
		panic("nil map write")
	}))

	resp, err := h.Handle(context.Background(), ports.RuntimeRequest{ID: "r-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.NotErrorIs(t, err, ports.ErrPoisonMessage)
	assert.False(t, resp.Success)
}

func TestMetricsMiddleware_ClassifiesResults(t *testing.T) {
	obs, metrics := testsupport.NewObservability(t)

	results := []error{nil, fmt.Errorf("x: %w", ports.ErrPoisonMessage), errors.New("io")}
	for _, result := range results {
		h, err := WithDefaultMiddleware(ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
			return ports.RuntimeResponse{Success: result == nil, Outcome: "completed"}, result
		}), obs)
		require.NoError(t, err)
		_, _ = h.Handle(context.Background(), ports.RuntimeRequest{Source: "queue"})
	}

	assert.Equal(t, int64(3), metrics.GetCounter("handler.requests"))
	assert.Equal(t, int64(2), metrics.GetCounter("handler.errors"))
	assert.Equal(t, int64(1), metrics.GetCounter("handler.outcomes"))
	assert.Equal(t, 3, metrics.HistogramCount("handler.duration_ms"))
}

func newTestHTTPRuntime(t *testing.T, handler ports.Handler) *httpRuntime {
	t.Helper()
	obs, _ := testsupport.NewObservability(t)
	rt, err := NewHTTPRuntime(&config.HTTPConfig{Addr: ":0"}, handler, nil, obs)
	require.NoError(t, err)
	return rt.(*httpRuntime)
}

func TestHTTPRuntime_JobStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "handled", err: nil, status: http.StatusOK},
		{name: "poison", err: fmt.Errorf("decode: %w", ports.ErrPoisonMessage), status: http.StatusBadRequest},
		{name: "retryable", err: errors.New("status 503"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ports.RuntimeRequest
			rt := newTestHTTPRuntime(t, ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
				got = req
				return ports.RuntimeResponse{Outcome: "completed"}, tt.err
			}))

			req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"Title":"Solo"}`))
			req.Header.Set("X-Request-ID", "req-7")
			rec := httptest.NewRecorder()
			rt.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "req-7", got.ID)
			assert.JSONEq(t, `{"Title":"Solo"}`, string(got.Payload))

			var resp ports.RuntimeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.err == nil, resp.Success)
		})
	}
}

func TestHTTPRuntime_HealthAndMethods(t *testing.T) {
	rt := newTestHTTPRuntime(t, ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
		return ports.RuntimeResponse{}, nil
	}))

	rec := httptest.NewRecorder()
	rt.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	rt.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	rt.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpsServer_Health(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	ops, err := NewOpsServer(":0", metricsHandler, obs)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ops.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ops.SetHealthCheck(func() error { return errors.New("consumer is not running") })
	rec = httptest.NewRecorder()
	ops.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "consumer is not running")

	rec = httptest.NewRecorder()
	ops.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())
}

func sqsEvent(t *testing.T, bodies map[string]string, order ...string) json.RawMessage {
	t.Helper()
	event := events.SQSEvent{}
	for _, id := range order {
		event.Records = append(event.Records, events.SQSMessage{
			MessageId:   id,
			Body:        bodies[id],
			EventSource: "aws:sqs",
		})
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestLambdaRuntime_BatchItemFailures(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	handler := ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
		switch string(req.Payload) {
		case "not json":
			return ports.RuntimeResponse{}, fmt.Errorf("decode: %w", ports.ErrPoisonMessage)
		case `{"fail":true}`:
			return ports.RuntimeResponse{}, errors.New("status 500")
		}
		return ports.RuntimeResponse{Success: true}, nil
	})

	rt, err := NewLambdaRuntime(&config.LambdaConfig{EnablePartialBatchFailure: true}, handler, obs)
	require.NoError(t, err)

	event := sqsEvent(t, map[string]string{
		"ok":     `{"Title":"Solo"}`,
		"poison": "not json",
		"retry":  `{"fail":true}`,
	}, "ok", "poison", "retry")

	out, err := rt.(*lambdaRuntime).handleEvent(context.Background(), event)
	require.NoError(t, err)

	resp := out.(events.SQSEventResponse)
	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "retry"}}, resp.BatchItemFailures)
}

func TestLambdaRuntime_FailsWholeBatchWithoutPartialResponses(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	handler := ports.HandlerFunc(func(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
		return ports.RuntimeResponse{}, errors.New("status 500")
	})

	rt, err := NewLambdaRuntime(&config.LambdaConfig{}, handler, obs)
	require.NoError(t, err)

	_, err = rt.(*lambdaRuntime).handleEvent(context.Background(), sqsEvent(t, map[string]string{"a": "{}"}, "a"))
	assert.ErrorContains(t, err, "1/1 messages failed")
}

func TestLambdaRuntime_UnsupportedEvent(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	rt, err := NewLambdaRuntime(&config.LambdaConfig{}, ports.HandlerFunc(nil), obs)
	require.NoError(t, err)

	_, err = rt.(*lambdaRuntime).handleEvent(context.Background(), json.RawMessage(`{"detail":{}}`))
	assert.ErrorContains(t, err, "unsupported event type")
}

func TestCreate_UnknownRuntime(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	cfg := config.DefaultConfig()
	cfg.Adapters.Runtime = "kafka"

	_, err := Create(cfg, ports.HandlerFunc(nil), nil, obs)
	assert.ErrorContains(t, err, "unsupported runtime adapter")
}

func TestCreate_MemoryConsumer(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)
	cfg := config.DefaultConfig()
	cfg.Adapters.Runtime = "memory"

	rt, err := Create(cfg, ports.HandlerFunc(nil), nil, obs)
	require.NoError(t, err)
	assert.IsType(t, &consumerRuntime{}, rt)
}
