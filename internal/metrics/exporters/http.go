// Package exporters serves the relay's Prometheus metrics over HTTP.
package exporters

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns a mux exposing the default registry on /metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	))
	return mux
}

// Serve exposes Handler on addr until the listener fails. It is meant to run
// on its own goroutine; failures are logged, never fatal to the relay.
func Serve(addr string, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Starting metrics listener", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics listener failed", "addr", addr, "error", err)
	}
}
