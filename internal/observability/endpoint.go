package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skyfleet/fleetlink/internal/logging"
)

// Endpoint serves the Prometheus scrape endpoint.
type Endpoint struct {
	server *http.Server
}

// NewEndpoint builds the /metrics HTTP server for the given metrics.
func NewEndpoint(listenAddress string, metrics *Metrics) *Endpoint {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	return &Endpoint{
		server: &http.Server{
			Addr:              listenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start runs the endpoint until Shutdown is called.
func (e *Endpoint) Start() {
	go func() {
		logging.Info("Metrics endpoint listening", "address", e.server.Addr)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics endpoint failed", "error", err)
		}
	}()
}

// Shutdown stops the endpoint gracefully.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
