package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestAuditMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewAuditMetrics(reg)

	metrics.ObserveCycle("ok", 250*time.Millisecond)
	metrics.IncEvictions("general", 3)
	metrics.IncFailure("general")
	metrics.IncChannel("ok")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "audit_evictions_total", "channel", "general"); err != nil {
		t.Fatalf("fetch evictions: %v", err)
	} else if got != 3 {
		t.Fatalf("expected evictions=3, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "audit_failures_total", "channel", "general"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "audit_cycle_duration_seconds", "outcome", "ok"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestGovernorMetricsNilSafe(t *testing.T) {
	var metrics *GovernorMetrics
	metrics.ObserveWait("mutation", time.Second)
	metrics.IncRetry("mutation")
	metrics.IncCooldown()

	empty := NewGovernorMetrics(nil)
	empty.ObserveWait("mutation", time.Second)
	empty.IncRetry("mutation")
	empty.IncCooldown()
}

func TestGovernorMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGovernorMetrics(reg)

	metrics.ObserveWait("mutation", 1200*time.Millisecond)
	metrics.IncRetry("mutation")
	metrics.IncCooldown()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "governor_wait_seconds_total", "surface", "mutation"); err != nil {
		t.Fatalf("fetch wait: %v", err)
	} else if got < 1.2 {
		t.Fatalf("expected wait >= 1.2s, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "governor_rate_limit_retries_total", "surface", "mutation"); err != nil {
		t.Fatalf("fetch retries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected retries=1, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
