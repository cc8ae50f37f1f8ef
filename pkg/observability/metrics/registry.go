// Package metrics provides Prometheus metrics integration for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry manages Prometheus metrics registration and exposure.
// It is backed by the process-wide default registry so that counters
// declared with promauto across the packages all surface through a
// single /metrics endpoint. Go runtime and process metrics come with
// the default registry itself.
type Registry struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewRegistry creates a metrics registry backed by the default Prometheus
// registry.
func NewRegistry() *Registry {
	return &Registry{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
}

// Register registers a custom Prometheus collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registerer.Register(collector)
}

// MustRegister registers custom Prometheus collectors and panics on error.
// Use this for metrics that must be registered at startup.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registerer.MustRegister(collectors...)
}

// Unregister removes a collector from the registry.
// This is primarily useful for testing.
func (r *Registry) Unregister(collector prometheus.Collector) bool {
	reg, ok := r.registerer.(*prometheus.Registry)
	if !ok {
		return false
	}
	return reg.Unregister(collector)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
// Mount this on the management server's /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying prometheus.Gatherer for advanced use cases.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.gatherer
}
