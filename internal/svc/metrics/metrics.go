// Package metrics exposes Prometheus instrumentation for the dataflow
// engine: queue occupancy/drops and worker retry counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors this server reports. It is a thin wrapper
// around the default Prometheus registry so call sites don't need to thread
// a *prometheus.Registry through the pipeline construction code.
type Registry struct {
	QueueDropped  *prometheus.CounterVec
	QueueOccupied *prometheus.GaugeVec
	WorkerRetries *prometheus.CounterVec
}

// NewRegistry registers and returns the engine's collector set. Safe to call
// once per process; registering twice panics, matching
// promauto's documented behavior.
func NewRegistry() *Registry {
	return &Registry{
		QueueDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaflow",
			Subsystem: "graph",
			Name:      "queue_dropped_frames_total",
			Help:      "Frames silently overwritten because a consumer fell behind.",
		}, []string{"queue"}),
		QueueOccupied: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mediaflow",
			Subsystem: "graph",
			Name:      "queue_occupied_frames",
			Help:      "Unread frames currently buffered in a queue.",
		}, []string{"queue"}),
		WorkerRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaflow",
			Subsystem: "graph",
			Name:      "worker_retries_total",
			Help:      "Filter ticks that returned Retry and were rescheduled.",
		}, []string{"worker"}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
