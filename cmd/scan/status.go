package scan

import (
	"net/http"
	"time"

	"github.com/certusone/wormhole/msgscan/pkg/readiness"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewStatusServer exposes readiness and Prometheus metrics while a scan runs.
func NewStatusServer(addr string, logger *zap.Logger) *http.Server {
	// Use a custom routing instead of using http.DefaultServeMux directly to avoid accidentally exposing packages
	// that register themselves with it by default (like pprof).
	r := mux.NewRouter()

	// Flips to ready once the scan range is resolved.
	r.HandleFunc("/readyz", readiness.Handler).Methods("GET")

	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
