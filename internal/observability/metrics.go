package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectionsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcwire",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Total accepted protocol connections.",
		},
		[]string{"node"},
	)
	framesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcwire",
			Subsystem: "server",
			Name:      "frames_total",
			Help:      "Total request frames decoded, by operation.",
		},
		[]string{"node", "op"},
	)
	handlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcwire",
			Subsystem: "server",
			Name:      "handler_errors_total",
			Help:      "Handler failures, by kind.",
		},
		[]string{"node", "kind"},
	)
	activeHandlers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "calcwire",
			Subsystem: "server",
			Name:      "active_handlers",
			Help:      "Handlers currently holding a permit.",
		},
		[]string{"node"},
	)
	acceptRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcwire",
			Subsystem: "server",
			Name:      "accept_retries_total",
			Help:      "Accept failures retried with backoff.",
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calcwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "calcwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsAccepted,
			framesHandled,
			handlerErrors,
			activeHandlers,
			acceptRetries,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordConnection(node string) {
	RegisterMetrics()
	connectionsAccepted.WithLabelValues(node).Inc()
}

func RecordFrame(node, op string) {
	RegisterMetrics()
	framesHandled.WithLabelValues(node, op).Inc()
}

func RecordHandlerError(node, kind string) {
	RegisterMetrics()
	handlerErrors.WithLabelValues(node, kind).Inc()
}

func SetActiveHandlers(node string, n int64) {
	RegisterMetrics()
	activeHandlers.WithLabelValues(node).Set(float64(n))
}

func RecordAcceptRetry(node string) {
	RegisterMetrics()
	acceptRetries.WithLabelValues(node).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
