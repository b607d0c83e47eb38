// Package metrics provides Prometheus instrumentation for the match engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersTotal counts orders placed, partitioned by type, side and
	// terminal-or-pending status.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeduel_orders_total",
		Help: "Total orders placed",
	}, []string{"type", "side", "status"})

	// FillsTotal counts order fills by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeduel_fills_total",
		Help: "Total order fills",
	}, []string{"side"})

	// ActiveMatches tracks the number of matches currently active.
	ActiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeduel_active_matches",
		Help: "Number of currently active matches",
	})

	// TicksProcessed counts price ticks delivered to match workers.
	TicksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeduel_ticks_processed_total",
		Help: "Price ticks processed by match workers",
	}, []string{"symbol"})

	// FeedOverruns counts ticks dropped because a subscriber queue was full.
	FeedOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeduel_feed_overruns_total",
		Help: "Ticks dropped due to slow subscribers",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeduel_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeduel_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradeduel_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// PersistenceRetries counts retried durable-store writes.
	PersistenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeduel_persistence_retries_total",
		Help: "Durable-store writes retried after transient failure",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
