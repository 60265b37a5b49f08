// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawscope_http_requests_total",
			Help: "HTTP requests handled, by route template, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clawscope_http_request_duration_seconds",
			Help:    "HTTP request latency by route template.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	UpstreamFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawscope_upstream_fetch_total",
			Help: "Attempts against the agent platform, by resource, strategy and outcome.",
		},
		[]string{"resource", "strategy", "outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clawscope_search_duration_seconds",
			Help:    "Memory search latency by effective mode.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	SessionCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawscope_session_cache_total",
			Help: "Session cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clawscope_ws_clients",
			Help: "Connected live timeline WebSocket clients.",
		},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
