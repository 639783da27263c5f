package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/docassist/internal/core/domain"
)

// ClientMetrics records session outcomes on a private registry.
type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	uploadsTotal   *prometheus.CounterVec
	uploadBytes    *prometheus.CounterVec
	queriesTotal   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	connectsTotal  *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	breakerChanges *prometheus.CounterVec

	http httpCollectors
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "session",
			Name:      "uploads_total",
			Help:      "Uploads that reached a terminal status.",
		},
		[]string{"service", "status"},
	)
	uploadBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "session",
			Name:      "upload_bytes_total",
			Help:      "Bytes of successfully uploaded documents.",
		},
		[]string{"service"},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "session",
			Name:      "queries_total",
			Help:      "Analysis queries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docassist",
			Subsystem: "session",
			Name:      "query_duration_seconds",
			Help:      "Analysis query duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "outcome"},
	)
	connectsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "External account connect attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docassist",
			Subsystem: "backend",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "backend",
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(uploadsTotal, uploadBytes, queriesTotal, queryDuration, connectsTotal, breakerState, breakerChanges)

	return &ClientMetrics{
		registry:       registry,
		service:        service,
		uploadsTotal:   uploadsTotal,
		uploadBytes:    uploadBytes,
		queriesTotal:   queriesTotal,
		queryDuration:  queryDuration,
		connectsTotal:  connectsTotal,
		breakerState:   breakerState,
		breakerChanges: breakerChanges,
		http:           newHTTPCollectors(registry, service),
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) RecordUpload(status domain.UploadStatus, bytes int64) {
	m.uploadsTotal.WithLabelValues(m.service, string(status)).Inc()
	if status == domain.UploadUploaded && bytes > 0 {
		m.uploadBytes.WithLabelValues(m.service).Add(float64(bytes))
	}
}

func (m *ClientMetrics) RecordQuery(outcome string, seconds float64) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.queriesTotal.WithLabelValues(m.service, outcome).Inc()
	if seconds >= 0 {
		m.queryDuration.WithLabelValues(m.service, outcome).Observe(seconds)
	}
}

func (m *ClientMetrics) RecordConnect(outcome domain.ConnectOutcome) {
	m.connectsTotal.WithLabelValues(m.service, string(outcome)).Inc()
}

// ObserveBreaker matches the resilience executor state observer signature.
func (m *ClientMetrics) ObserveBreaker(operation, _, to string) {
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
	m.breakerChanges.WithLabelValues(m.service, operation, to).Inc()
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
