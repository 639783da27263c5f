package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type httpCollectors struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func newHTTPCollectors(registry *prometheus.Registry, service string) httpCollectors {
	c := httpCollectors{
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docassist",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total loopback HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docassist",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Loopback HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "docassist",
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight loopback HTTP requests.",
				ConstLabels: prometheus.Labels{
					"service": service,
				},
			},
		),
	}
	registry.MustRegister(c.requestTotal, c.requestDuration, c.requestInFlight)
	return c
}

// Middleware counts loopback listener requests. Paths outside the known set
// collapse to "other" to keep label cardinality bounded.
func (m *ClientMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.http.requestInFlight.Inc()
		defer m.http.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.http.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.http.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch path {
	case "/healthz", "/metrics", "/oauth/token", "/oauth/callback", "/oauth/closed":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
