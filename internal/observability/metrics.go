package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of authenticated WebSocket sessions",
		},
	)

	MessagesPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages accepted and persisted by the dispatcher",
		},
	)

	PersistenceFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persistence_failures_total",
			Help: "Send requests rejected because the message store failed",
		},
	)

	// kind is one of: local, remote.
	DeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Live pushes dropped after successful persistence",
		},
		[]string{"kind"},
	)

	RejectedEnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rejected_envelopes_total",
			Help: "Inbound envelopes answered with an error envelope",
		},
		[]string{"code"},
	)

	MessageDispatchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_dispatch_latency_seconds",
			Help:    "Time from receiving send_message to completing fan-out",
			Buckets: prometheus.DefBuckets,
		},
	)
)
