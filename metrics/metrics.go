// Package metrics exposes the Prometheus collectors shared across QuantMesh
// components. Collectors are registered via promauto at package init; the
// HTTP server serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Orchestrator metrics
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantmesh_operations_total",
			Help: "Total composite orchestrator operations by outcome",
		},
		[]string{"operation", "status"}, // status: "ok", "error" or "panic"
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantmesh_operation_duration_seconds",
			Help:    "Composite operation wall-clock duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Message bus metrics
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantmesh_bus_messages_total",
			Help: "Total messages sent through the bus",
		},
		[]string{"type"},
	)

	BusHistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantmesh_bus_history_size",
			Help: "Current number of messages retained in the bus history",
		},
	)

	SubscriberErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quantmesh_bus_subscriber_errors_total",
			Help: "Subscriber callbacks that panicked during dispatch",
		},
	)

	// Upstream client metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantmesh_upstream_requests_total",
			Help: "Requests issued to external collaborators",
		},
		[]string{"service", "status"}, // service: "marketdata", "chain", "facilitator", "model"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantmesh_upstream_request_duration_seconds",
			Help:    "External collaborator request latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	// Price cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quantmesh_price_cache_hits_total",
			Help: "Spot price lookups answered from the cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quantmesh_price_cache_misses_total",
			Help: "Spot price lookups that fell through to the upstream API",
		},
	)
)
