package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "order-auto-complete"
	metrics.ObserveRun(job, 250*time.Millisecond, nil)
	metrics.ObserveRun(job, 10*time.Millisecond, errors.New("boom"))
	metrics.AddRows(job, "completed", 3)
	metrics.AddRows(job, "completed", 0)
	metrics.IncSkippedCycle()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, outcome := range []string{"success", "failure"} {
		if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "outcome", outcome); err != nil {
			t.Fatalf("fetch %s: %v", outcome, err)
		} else if got != 1 {
			t.Fatalf("expected %s=1, got %f", outcome, got)
		}
	}

	if got, err := fetchCounterValue(mfs, "cron_job_rows_total", "result", "completed"); err != nil {
		t.Fatalf("fetch rows: %v", err)
	} else if got != 3 {
		t.Fatalf("expected rows=3, got %f", got)
	}

	if mf := findMetricFamily(mfs, "cron_cycles_skipped_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one skipped cycle")
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.25 {
		t.Fatalf("expected duration sum to cover both runs, got %f", got)
	}
}

func TestNilCronJobMetricsIsNoop(t *testing.T) {
	metrics := NewCronJobMetrics(nil)
	if metrics != nil {
		t.Fatal("expected nil metrics without a registerer")
	}
	metrics.ObserveRun("job", time.Second, nil)
	metrics.AddRows("job", "completed", 1)
	metrics.IncSkippedCycle()
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
