// Package metrics, engine'in Prometheus metriklerini tanımlar.
// Debug sunucusu bunları GET /metrics altında yayınlar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WS metrics
	WSConnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmsync_ws_connects_total",
			Help: "Successful websocket connections (including reconnects)",
		},
	)

	WSReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmsync_ws_reconnect_attempts_total",
			Help: "Websocket redial attempts after an unexpected disconnect",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsync_inbound_events_total",
			Help: "Inbound websocket events by op",
		},
		[]string{"op"},
	)

	OutboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsync_outbound_events_total",
			Help: "Outbound websocket events by op",
		},
		[]string{"op"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsync_cache_lookups_total",
			Help: "Message cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "stale", "error"
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmsync_cache_evictions_total",
			Help: "Conversation cache entries evicted by the LRU cap",
		},
	)

	// REST metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmsync_api_request_duration_seconds",
			Help:    "REST request duration",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	StaleResponsesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmsync_stale_responses_dropped_total",
			Help: "Fetch results discarded because the conversation was no longer active",
		},
	)

	SendsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmsync_sends_throttled_total",
			Help: "Outbound messages rejected by the client-side rate limiter",
		},
	)
)
