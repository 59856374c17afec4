package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	acquireAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "instance",
			Name:      "acquire_attempts_total",
			Help:      "Lock acquisition attempts by outcome.",
		},
		[]string{"app_id", "outcome"},
	)
	activationsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "activation",
			Name:      "requests_served_total",
			Help:      "Activation requests answered by the primary listener.",
		},
		[]string{"app_id", "outcome"},
	)
	activationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "activation",
			Name:      "requests_sent_total",
			Help:      "Activation requests sent to a published primary port.",
		},
		[]string{"app_id", "outcome"},
	)
	diagRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soloctl",
			Subsystem: "diag",
			Name:      "http_requests_total",
			Help:      "Diagnostics endpoint HTTP requests.",
		},
		[]string{"app_id", "method", "path", "status"},
	)
	diagDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "soloctl",
			Subsystem: "diag",
			Name:      "http_request_duration_seconds",
			Help:      "Diagnostics endpoint HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app_id", "method", "path", "status"},
	)
)

// Acquire outcomes recorded against acquire_attempts_total.
const (
	OutcomePrimary   = "primary"
	OutcomeContended = "contended"
	OutcomeError     = "error"
)

// Activation outcomes recorded against the served/sent counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(acquireAttempts, activationsServed, activationsSent, diagRequests, diagDuration)
	})
}

func RecordAcquireAttempt(appID, outcome string) {
	RegisterMetrics()
	acquireAttempts.WithLabelValues(appID, outcome).Inc()
}

func RecordActivationServed(appID, outcome string) {
	RegisterMetrics()
	activationsServed.WithLabelValues(appID, outcome).Inc()
}

func RecordActivationSent(appID, outcome string) {
	RegisterMetrics()
	activationsSent.WithLabelValues(appID, outcome).Inc()
}

func RecordDiagRequest(appID, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	diagRequests.WithLabelValues(appID, method, path, statusLabel).Inc()
	diagDuration.WithLabelValues(appID, method, path, statusLabel).Observe(duration.Seconds())
}
