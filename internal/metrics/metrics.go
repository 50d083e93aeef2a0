// Package metrics holds the Prometheus collectors of the service and the editor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// HTTPRequests counts API requests by route pattern, method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmap_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "code"})

	// HTTPDuration tracks API latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mindmap_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// MapSaves counts full map replacements on the backend.
	MapSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmap_saves_total",
		Help: "Map saves by result",
	}, []string{"result"})

	// Expansions counts AI expansion requests by expander and result.
	Expansions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmap_expansions_total",
		Help: "AI expansions by expander and result",
	}, []string{"expander", "result"})

	// Publishes counts map publications by result.
	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmap_publishes_total",
		Help: "Map publications by result",
	}, []string{"result"})

	// ClientSaves counts saves issued by editor sessions, split by trigger
	// (debounced, explicit, flush) and result.
	ClientSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmap_client_saves_total",
		Help: "Editor saves by trigger and result",
	}, []string{"trigger", "result"})

	// SSEClients reports the number of connected event streams.
	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mindmap_sse_clients",
		Help: "Connected SSE clients",
	})

	// SSEDropped counts frames dropped because a client queue was full.
	SSEDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindmap_sse_dropped_total",
		Help: "SSE frames dropped for slow clients",
	})

	// IndexedMaps reports the number of maps in the index after a sync.
	IndexedMaps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mindmap_indexed_maps",
		Help: "Maps present in the index",
	})
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
