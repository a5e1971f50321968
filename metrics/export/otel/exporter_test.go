package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goAccount "github.com/MrEthical07/goAccount"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goAccount.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goAccount.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goAccount.MetricsSnapshot{
		Counters:    make(map[goAccount.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms:  make(map[goAccount.MetricID][]uint64, len(f.snapshot.Histograms)),
		LatencySums: make(map[goAccount.MetricID]time.Duration, len(f.snapshot.LatencySums)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	for k, v := range f.snapshot.LatencySums {
		out.LatencySums[k] = v
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func sumValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func gaugeFloat(rm metricdata.ResourceMetrics, name string) (float64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if data, ok := m.Data.(metricdata.Gauge[float64]); ok && len(data.DataPoints) > 0 {
				return data.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters: map[goAccount.MetricID]uint64{
				goAccount.MetricPasswordResetCompleted: 3,
			},
			Histograms: map[goAccount.MetricID][]uint64{
				goAccount.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			LatencySums: map[goAccount.MetricID]time.Duration{
				goAccount.MetricResolveLatency: 250 * time.Millisecond,
			},
		},
		dropped: 1,
	}

	exp, err := NewFromSource(provider.Meter("goaccount-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	cases := map[string]int64{
		"goaccount_password_reset_completed_total":                 3,
		"goaccount_login_success_total":                            0,
		"goaccount_audit_dropped_total":                            1,
		"goaccount_session_resolve_latency_seconds_bucket_le_0_01": 2,
		"goaccount_session_resolve_latency_seconds_bucket_le_inf":  8,
		"goaccount_session_resolve_latency_seconds_count":          8,
	}
	for name, want := range cases {
		got, ok := sumValue(rm, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
	if sum, ok := gaugeFloat(rm, "goaccount_session_resolve_latency_seconds_sum"); !ok || sum != 0.25 {
		t.Fatalf("unexpected latency sum %v (collected=%v)", sum, ok)
	}
}

func TestExporterSkipsCountersWhenDisabled(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{snapshot: goAccount.MetricsSnapshot{}}
	exp, err := NewFromSource(provider.Meter("goaccount-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := sumValue(rm, "goaccount_login_success_total"); ok {
		t.Fatal("expected no counter data points while metrics are disabled")
	}
	if _, ok := sumValue(rm, "goaccount_audit_dropped_total"); !ok {
		t.Fatal("expected audit dropped counter")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader(t)

	if _, err := NewFromSource(provider.Meter("goaccount-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := New(provider.Meter("goaccount-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters: map[goAccount.MetricID]uint64{
				goAccount.MetricLoginSuccess: 1,
			},
		},
	}

	exp, err := NewFromSource(provider.Meter("goaccount-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goAccount.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
