package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clockctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clockctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	protocolRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clockctl",
			Subsystem: "protocol",
			Name:      "requests_total",
			Help:      "Clock protocol requests by opcode.",
		},
		[]string{"opcode"},
	)
	protocolResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clockctl",
			Subsystem: "protocol",
			Name:      "responses_total",
			Help:      "Clock protocol responses by status.",
		},
		[]string{"status"},
	)
	busyRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clockctl",
			Subsystem: "protocol",
			Name:      "busy_rejections_total",
			Help:      "Requests rejected because the clock had an outstanding operation.",
		},
	)
	pendingOps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clockctl",
			Subsystem: "protocol",
			Name:      "pending_operations",
			Help:      "Hardware operations waiting on an asynchronous completion.",
		},
	)
	completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clockctl",
			Subsystem: "protocol",
			Name:      "completion_latency_seconds",
			Help:      "Time between hardware submission and completion delivery.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			protocolRequests, protocolResponses,
			busyRejections, pendingOps, completionLatency,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordProtocolRequest(opcode string) {
	RegisterMetrics()
	protocolRequests.WithLabelValues(opcode).Inc()
}

func RecordProtocolResponse(status string) {
	RegisterMetrics()
	protocolResponses.WithLabelValues(status).Inc()
}

func RecordBusyRejection() {
	RegisterMetrics()
	busyRejections.Inc()
}

func RecordPendingStart() {
	RegisterMetrics()
	pendingOps.Inc()
}

func RecordPendingDone(kind string, age time.Duration) {
	RegisterMetrics()
	pendingOps.Dec()
	completionLatency.WithLabelValues(kind).Observe(age.Seconds())
}
