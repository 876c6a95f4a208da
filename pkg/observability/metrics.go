package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inmofin_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inmofin_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inmofin_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"path"},
	)

	// ImportRowsTotal tracks bank statement rows by outcome
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inmofin_import_rows_total",
			Help: "Bank statement rows processed, labeled by outcome",
		},
		[]string{"outcome"},
	)

	// InboxDocumentsTotal tracks inbox documents by final OCR status
	InboxDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inmofin_inbox_documents_total",
			Help: "Inbox documents processed, labeled by OCR status",
		},
		[]string{"status"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware collects Prometheus metrics per request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Track active requests
		ActiveRequests.WithLabelValues(path).Inc()
		defer ActiveRequests.WithLabelValues(path).Dec()

		// Track duration
		start := time.Now()
		defer func() {
			duration := time.Since(start).Seconds()
			RequestDuration.WithLabelValues(path, r.Method).Observe(duration)
		}()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		RequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
