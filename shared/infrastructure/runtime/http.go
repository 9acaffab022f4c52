package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

const maxJobBodyBytes = 64 << 20

// handles HTTP server runtime integration. Jobs are processed one at a
// time, like a prefetch-1 queue consumer.
type httpRuntime struct {
	handler        ports.Handler
	logger         ports.Logger
	metrics        ports.Metrics
	config         *config.HTTPConfig
	metricsHandler http.Handler

	jobMu  sync.Mutex
	server *http.Server
}

// NewHTTPRuntime creates a runtime that accepts jobs on POST /jobs.
func NewHTTPRuntime(cfg *config.HTTPConfig, handler ports.Handler, metricsHandler http.Handler, obs ports.Observability) (ports.Runtime, error) {
	logger, metrics, err := obs.ComponentsScoped("runtime.http")
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: observability was not initialized: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("failed to create runtime: handler is required")
	}

	return &httpRuntime{
		handler:        handler,
		logger:         logger,
		metrics:        metrics,
		config:         cfg,
		metricsHandler: metricsHandler,
	}, nil
}

func (httpRuntime *httpRuntime) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/jobs", httpRuntime.handleJob)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, nil)
	})
	if httpRuntime.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", httpRuntime.metricsHandler)
	}
	return r
}

// Start serves until ctx is cancelled or the listener fails.
func (httpRuntime *httpRuntime) Start(ctx context.Context) error {
	httpRuntime.server = &http.Server{
		Addr:              httpRuntime.config.Addr,
		Handler:           httpRuntime.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpRuntime.logger.Info("Starting HTTP runtime", "address", httpRuntime.config.Addr)
	httpRuntime.metrics.IncrementCounter("http.starts", nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpRuntime.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the HTTP server
func (httpRuntime *httpRuntime) Stop(ctx context.Context) error {
	if httpRuntime.server == nil {
		return nil
	}

	httpRuntime.logger.Info("Shutting down HTTP server")
	if err := httpRuntime.server.Shutdown(ctx); err != nil {
		httpRuntime.logger.Error("HTTP server shutdown failed", "error", err)
	}
	return nil
}

func (httpRuntime *httpRuntime) handleJob(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	httpRuntime.metrics.IncrementCounter("http.requests", nil)
	defer func() {
		httpRuntime.metrics.RecordHistogram("http.request_duration_ms",
			float64(time.Since(startTime).Milliseconds()), nil)
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxJobBodyBytes))
	if err != nil {
		httpRuntime.writeResponse(w, http.StatusBadRequest,
			ports.RuntimeResponse{Error: fmt.Sprintf("failed to read request body: %v", err)})
		return
	}

	req := ports.RuntimeRequest{
		ID:        r.Header.Get("X-Request-ID"),
		Source:    "http",
		Type:      "job",
		Payload:   json.RawMessage(body),
		Metadata:  map[string]string{"http_remote_addr": r.RemoteAddr},
		Timestamp: time.Now().UTC(),
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		req.Metadata["http_user_agent"] = ua
	}

	httpRuntime.jobMu.Lock()
	resp, err := httpRuntime.handler.Handle(r.Context(), req)
	httpRuntime.jobMu.Unlock()

	switch {
	case err == nil:
		resp.Success = true
		httpRuntime.writeResponse(w, http.StatusOK, resp)
	case errors.Is(err, ports.ErrPoisonMessage):
		httpRuntime.metrics.IncrementCounter("http.bad_request", nil)
		httpRuntime.writeResponse(w, http.StatusBadRequest, ports.RuntimeResponse{Error: err.Error()})
	default:
		httpRuntime.metrics.IncrementCounter("http.failed", nil)
		httpRuntime.writeResponse(w, http.StatusInternalServerError, ports.RuntimeResponse{Error: err.Error()})
	}
}

func (httpRuntime *httpRuntime) writeResponse(w http.ResponseWriter, status int, resp ports.RuntimeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		httpRuntime.logger.Error("Failed to encode response", "error", err)
	}
}
