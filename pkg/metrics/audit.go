package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics records metadata for audit cycles.
type AuditMetrics struct {
	cycleDuration *prometheus.HistogramVec
	evictions     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	channels      *prometheus.CounterVec
}

// NewAuditMetrics registers the audit metrics on the provided registerer.
func NewAuditMetrics(reg prometheus.Registerer) *AuditMetrics {
	if reg == nil {
		return &AuditMetrics{}
	}
	cycleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audit_cycle_duration_seconds",
		Help:    "Duration of audit cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_evictions_total",
		Help: "Members suspended because they were not in the approved set.",
	}, []string{"channel"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_failures_total",
		Help: "Errors recorded while auditing channels.",
	}, []string{"channel"})
	channels := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_channels_total",
		Help: "Channels inspected by audit cycles.",
	}, []string{"outcome"})
	reg.MustRegister(cycleDuration, evictions, failures, channels)
	return &AuditMetrics{
		cycleDuration: cycleDuration,
		evictions:     evictions,
		failures:      failures,
		channels:      channels,
	}
}

// ObserveCycle records the duration of one audit cycle.
func (a *AuditMetrics) ObserveCycle(outcome string, duration time.Duration) {
	if a == nil || a.cycleDuration == nil {
		return
	}
	a.cycleDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncEvictions adds evicted member counts for the named channel.
func (a *AuditMetrics) IncEvictions(channel string, count int) {
	if a == nil || a.evictions == nil || count <= 0 {
		return
	}
	a.evictions.WithLabelValues(normalizeLabel(channel)).Add(float64(count))
}

// IncFailure increments the audit failure counter for the named channel.
func (a *AuditMetrics) IncFailure(channel string) {
	if a == nil || a.failures == nil {
		return
	}
	a.failures.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncChannel increments the per-outcome channel counter.
func (a *AuditMetrics) IncChannel(outcome string) {
	if a == nil || a.channels == nil {
		return
	}
	a.channels.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
