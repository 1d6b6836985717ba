package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pool_dashboard", Name: "refreshes_total", Help: "Total dashboard refresh pulls by outcome"},
		[]string{"role", "outcome"},
	)
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "pool_dashboard", Name: "refresh_duration_seconds", Help: "Dashboard refresh pull latency", Buckets: prometheus.DefBuckets},
		[]string{"role"},
	)
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pool_dashboard", Name: "stream_events_total", Help: "Server-pushed events received by kind"},
		[]string{"role", "kind"},
	)
	StreamReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pool_dashboard", Name: "stream_reconnects_total", Help: "Event stream reconnect attempts"},
		[]string{"role"},
	)
	StreamConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "pool_dashboard", Name: "stream_connected", Help: "Whether the event stream is currently connected (1/0)"},
		[]string{"role"},
	)
	CountdownExpiriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pool_dashboard", Name: "countdown_expiries_total", Help: "Pool window countdowns that reached zero"},
		[]string{"role"},
	)
	StaleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pool_dashboard", Name: "stale_results_discarded_total", Help: "Pull or countdown results discarded after subject change"},
		[]string{"role"},
	)
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "pool_dashboard", Name: "ws_clients", Help: "Connected render-model push clients"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pool_dashboard", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pool_dashboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
