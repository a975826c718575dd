package metrics

import "github.com/prometheus/client_golang/prometheus"

// RAG pipeline Prometheus metrics.
var (
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "uploads_total",
			Help:      "Total number of file uploads",
		},
		[]string{"status"}, // "success" / "rejected" / "error"
	)

	UploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tablechat",
			Name:      "upload_duration_seconds",
			Help:      "End-to-end upload pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "queries_total",
			Help:      "Total number of room queries",
		},
		[]string{"status"}, // "success" / "not_found" / "error"
	)

	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tablechat",
			Name:      "chat_request_duration_seconds",
			Help:      "Chat completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "status"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tablechat",
			Name:      "sessions_active",
			Help:      "Number of sessions currently held in the registry",
		},
	)

	SessionEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablechat",
			Name:      "session_evictions_total",
			Help:      "Total sessions evicted from the registry",
		},
		[]string{"reason"}, // "ttl" / "capacity"
	)
)

var ragMetricsRegistered bool

// RegisterRAGMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterRAGMetrics() {
	if ragMetricsRegistered {
		return
	}
	prometheus.MustRegister(UploadsTotal)
	prometheus.MustRegister(UploadDuration)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(ChatRequestDuration)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionEvictionsTotal)
	ragMetricsRegistered = true
}
