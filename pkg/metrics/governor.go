package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GovernorMetrics records pacing behavior of the rate governor.
type GovernorMetrics struct {
	waitSeconds *prometheus.CounterVec
	retries     *prometheus.CounterVec
	cooldowns   prometheus.Counter
}

// NewGovernorMetrics registers the governor metrics on the provided registerer.
func NewGovernorMetrics(reg prometheus.Registerer) *GovernorMetrics {
	if reg == nil {
		return &GovernorMetrics{}
	}
	waitSeconds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "governor_wait_seconds_total",
		Help: "Time spent waiting before platform calls, per surface.",
	}, []string{"surface"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "governor_rate_limit_retries_total",
		Help: "Retries issued after platform rate-limit responses.",
	}, []string{"surface"})
	cooldowns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "governor_burst_cooldowns_total",
		Help: "Burst cooldown pauses inserted between mutation runs.",
	})
	reg.MustRegister(waitSeconds, retries, cooldowns)
	return &GovernorMetrics{
		waitSeconds: waitSeconds,
		retries:     retries,
		cooldowns:   cooldowns,
	}
}

// ObserveWait adds waiting time for the named surface.
func (g *GovernorMetrics) ObserveWait(surface string, wait time.Duration) {
	if g == nil || g.waitSeconds == nil || wait <= 0 {
		return
	}
	g.waitSeconds.WithLabelValues(normalizeLabel(surface)).Add(wait.Seconds())
}

// IncRetry increments the rate-limit retry counter for the named surface.
func (g *GovernorMetrics) IncRetry(surface string) {
	if g == nil || g.retries == nil {
		return
	}
	g.retries.WithLabelValues(normalizeLabel(surface)).Inc()
}

// IncCooldown increments the burst cooldown counter.
func (g *GovernorMetrics) IncCooldown() {
	if g == nil || g.cooldowns == nil {
		return
	}
	g.cooldowns.Inc()
}
