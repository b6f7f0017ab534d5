// Package metrics provides Prometheus metrics for livepad.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livepad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	treeFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livepad_tree_files",
			Help: "Number of files in the tree",
		},
	)

	treeFolders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livepad_tree_folders",
			Help: "Number of folders in the tree",
		},
	)

	persistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepad_persist_failures_total",
			Help: "Snapshot writes that failed, by key",
		},
		[]string{"key"},
	)

	compositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepad_preview_compositions_total",
			Help: "Preview documents composed, by file kind",
		},
		[]string{"kind"},
	)

	consoleMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepad_console_messages_total",
			Help: "Console messages appended to the transcript, by log type",
		},
		[]string{"log_type"},
	)

	consoleDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livepad_console_dropped_total",
			Help: "Console messages dropped because the inbound queue was full",
		},
	)

	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livepad_sse_connections_active",
			Help: "Number of connected SSE clients",
		},
	)

	sseDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livepad_sse_dropped_total",
			Help: "SSE frames skipped for clients whose buffer was full",
		},
	)

	importsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepad_imports_total",
			Help: "Files imported, by source",
		},
		[]string{"source"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetTreeSize sets the current file and folder counts.
func SetTreeSize(files, folders int) {
	treeFiles.Set(float64(files))
	treeFolders.Set(float64(folders))
}

// RecordPersistFailure records a failed snapshot write for key.
func RecordPersistFailure(key string) {
	persistFailuresTotal.WithLabelValues(key).Inc()
}

// RecordComposition records a preview composition for a file kind.
func RecordComposition(kind string) {
	compositionsTotal.WithLabelValues(kind).Inc()
}

// RecordConsoleMessage records a console message reaching the transcript.
func RecordConsoleMessage(logType string) {
	consoleMessagesTotal.WithLabelValues(logType).Inc()
}

// RecordConsoleDropped records a console message lost to a full queue.
func RecordConsoleDropped() {
	consoleDroppedTotal.Inc()
}

// SetSSEConnectionsActive sets the number of connected SSE clients.
func SetSSEConnectionsActive(count int) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEDropped records a frame skipped for a slow SSE client.
func RecordSSEDropped() {
	sseDroppedTotal.Inc()
}

// RecordImport records an imported file; source is "upload", "watch" or "mcp".
func RecordImport(source string) {
	importsTotal.WithLabelValues(source).Inc()
}

// Middleware returns HTTP middleware that records request metrics labelled
// by chi route pattern, keeping label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
