package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the admission path.
type Metrics struct {
	admissionChecks     *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	quotaRejections     *prometheus.CounterVec
	usageRecorded       *prometheus.CounterVec
	checkDuration       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		admissionChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_admission_checks_total",
				Help: "Admission decisions by outcome and endpoint category",
			},
			[]string{"outcome", "category"},
		),

		rateLimitRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter, by violated rule",
			},
			[]string{"category", "rule"},
		),

		quotaRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_quota_rejections_total",
				Help: "Requests rejected by the quota gate, by exhausted window",
			},
			[]string{"service", "window"},
		),

		usageRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_usage_recorded_total",
				Help: "Successful dispatches charged against quota",
			},
			[]string{"service"},
		),

		checkDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gateway_admission_check_duration_seconds",
				Help:    "Latency of the full admission check",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15),
			},
		),
	}
}

func (m *Metrics) RecordCheck(outcome, category string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.admissionChecks.WithLabelValues(outcome, category).Inc()
	m.checkDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRateLimitRejection(category, rule string) {
	if m == nil {
		return
	}
	m.rateLimitRejections.WithLabelValues(category, rule).Inc()
}

func (m *Metrics) RecordQuotaRejection(service, window string) {
	if m == nil {
		return
	}
	m.quotaRejections.WithLabelValues(service, window).Inc()
}

func (m *Metrics) RecordUsage(service string) {
	if m == nil {
		return
	}
	m.usageRecorded.WithLabelValues(service).Inc()
}
