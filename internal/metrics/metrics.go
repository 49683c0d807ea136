// Package metrics exposes runtime counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trashcan"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method, and status.",
		},
		[]string{"route", "method", "status"},
	)

	StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Storage operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	StorageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_seconds",
			Help:      "Storage operation latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	IngestMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "MQTT messages handled by kind and result.",
		},
		[]string{"kind", "result"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_breaker_open",
			Help:      "1 while the storage circuit breaker is open.",
		},
		[]string{"name"},
	)
)

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		HTTPRequests,
		StorageOperations,
		StorageLatency,
		IngestMessages,
		BreakerState,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

// ResultOf maps an error to a result label.
func ResultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
