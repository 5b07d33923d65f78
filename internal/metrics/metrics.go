// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

var (
	auditSubmissionsTotal      *prometheus.CounterVec
	auditRunsTotal             *prometheus.CounterVec
	auditStageDurationSeconds  *prometheus.HistogramVec
	auditStageFailuresTotal    *prometheus.CounterVec
	auditPerformanceFallbacks  prometheus.Counter
	auditSecondaryFailures     *prometheus.CounterVec
	auditInFlight              prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditSubmissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_submissions_total",
				Help: "Total number of audit submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		auditRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_runs_total",
				Help: "Total number of finished audit runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		auditStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_stage_duration_seconds",
				Help:    "Histogram of pipeline stage latencies, labeled by stage.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"stage"},
		)

		auditStageFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_stage_failures_total",
				Help: "Total number of fatal pipeline failures, labeled by stage.",
			},
			[]string{"stage"},
		)

		auditPerformanceFallbacks = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_performance_fallbacks_total",
				Help: "Total number of runs that used degraded performance data.",
			},
		)

		auditSecondaryFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_secondary_failures_total",
				Help: "Total number of logged-and-swallowed failures, labeled by kind.",
			},
			[]string{"kind"},
		)

		auditInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_in_flight",
				Help: "Number of audit runs currently executing.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting on outbound rate limits, labeled by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSubmission counts one intake attempt.
func ObserveSubmission(outcome string) {
	Init()
	auditSubmissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun counts one finished run by terminal status.
func ObserveRun(status string) {
	Init()
	auditRunsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	auditStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveStageFailure counts a fatal failure in stage.
func ObserveStageFailure(stage string) {
	Init()
	auditStageFailuresTotal.WithLabelValues(stage).Inc()
}

// ObservePerformanceFallback counts a run that substituted degraded performance data.
func ObservePerformanceFallback() {
	Init()
	auditPerformanceFallbacks.Inc()
}

// ObserveSecondaryFailure counts a failure that was logged and not propagated.
func ObserveSecondaryFailure(kind string) {
	Init()
	auditSecondaryFailures.WithLabelValues(kind).Inc()
}

// ObserveRateLimitDelay records time spent waiting for an outbound token.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}

// IncInFlight increments the in-flight runs gauge.
func IncInFlight() {
	Init()
	auditInFlight.Inc()
}

// DecInFlight decrements the in-flight runs gauge.
func DecInFlight() {
	Init()
	auditInFlight.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
