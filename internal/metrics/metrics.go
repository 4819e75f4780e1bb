package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_tokens_issued_total",
			Help: "Total RTC credentials issued",
		},
		[]string{"path"}, // "session" or "channel"
	)

	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_messages_relayed_total",
			Help: "Total chat messages relayed",
		},
		[]string{"type"}, // "text", "emoji" or "media"
	)

	FileFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_file_fetches_total",
			Help: "Total stored-file fetches",
		},
		[]string{"tier", "status"},
	)

	AttachmentsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_attachments_stored_total",
			Help: "Total chat attachments stored",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_ws_connections",
			Help: "Currently connected room subscribers",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
