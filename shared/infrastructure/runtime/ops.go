package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mangadownloader/shared/application/ports"
)

// OpsServer exposes /healthz and, when a metrics handler is available,
// /metrics next to a queue consumer.
type OpsServer struct {
	addr           string
	metricsHandler http.Handler
	logger         ports.Logger

	mu     sync.RWMutex
	health func() error
	server *http.Server
}

func NewOpsServer(addr string, metricsHandler http.Handler, obs ports.Observability) (*OpsServer, error) {
	logger, err := obs.LoggerScoped("runtime.ops")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger from observability: %w", err)
	}

	return &OpsServer{
		addr:           addr,
		metricsHandler: metricsHandler,
		logger:         logger,
		health:         func() error { return nil },
	}, nil
}

func (o *OpsServer) SetHealthCheck(check func() error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.health = check
}

// Router returns the ops routes.
func (o *OpsServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", o.handleHealth)
	if o.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", o.metricsHandler)
	}
	return r
}

// Start listens in the background. A bind failure is returned immediately.
func (o *OpsServer) Start() error {
	listener, err := net.Listen("tcp", o.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", o.addr, err)
	}

	server := &http.Server{
		Handler:           o.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	o.mu.Lock()
	o.server = server
	o.mu.Unlock()

	o.logger.Info("Ops server listening", "address", listener.Addr().String())
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.logger.Error("Ops server stopped", "error", err)
		}
	}()
	return nil
}

func (o *OpsServer) Stop(ctx context.Context) error {
	o.mu.RLock()
	server := o.server
	o.mu.RUnlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (o *OpsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	o.mu.RLock()
	check := o.health
	o.mu.RUnlock()

	writeHealth(w, check())
}

func writeHealth(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if err != nil {
		body = map[string]string{"status": "unavailable", "error": err.Error()}
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
