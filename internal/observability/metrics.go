package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcard_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ReconcilePasses counts reconciliation passes by outcome.
	ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcard_reconcile_passes_total",
		Help: "Total number of reconciliation passes by outcome",
	}, []string{"outcome"})

	// ReconcileCoalesced counts triggers absorbed into an in-flight pass.
	ReconcileCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapcard_reconcile_coalesced_total",
		Help: "Total number of reconciliation triggers coalesced into a running pass",
	})

	// ReconcileDuration records reconciliation pass latency.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tapcard_reconcile_duration_seconds",
		Help:    "Reconciliation pass latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// FeedEvents counts change-feed events by table and event type.
	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcard_feed_events_total",
		Help: "Total change-feed events by table and type",
	}, []string{"table", "type"})

	// WebSocketConnections is the gauge of active realtime connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tapcard_websocket_connections",
		Help: "Number of active realtime WebSocket connections",
	})
)
