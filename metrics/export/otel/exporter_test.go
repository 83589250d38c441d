package otel

import (
	"context"
	"errors"
	"sync"
	"testing"

	goShield "github.com/MrEthical07/goShield"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goShield.MetricsSnapshot
	dropped  uint64
	mode     string
	sessions int
	countErr error
}

func (f *fakeSource) AuthorizationMode() string { return f.mode }

func (f *fakeSource) ActiveSessionCount(context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sessions, f.countErr
}

func (f *fakeSource) MetricsSnapshot() goShield.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goShield.MetricsSnapshot{
		Counters:   make(map[goShield.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goShield.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findPoint(rm metricdata.ResourceMetrics, name string) (metricdata.DataPoint[int64], bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			if len(points) > 0 {
				return points[0], true
			}
		}
	}
	return metricdata.DataPoint[int64]{}, false
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	p, ok := findPoint(rm, name)
	return p.Value, ok
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("goshield-test")

	src := &fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{
				goShield.MetricLoginSuccess: 3,
				goShield.MetricAuthzDenied:  5,
			},
			Histograms: map[goShield.MetricID][]uint64{
				goShield.MetricDecisionLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped:  1,
		mode:     goShield.AuthorizationModeModules,
		sessions: 6,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
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

	checks := map[string]int64{
		"goshield_login_success_total":                      3,
		"goshield_authz_denied_total":                       5,
		"goshield_events_dropped_total":                     1,
		"goshield_decision_latency_seconds_bucket_le_inf":   8,
		"goshield_decision_latency_seconds_bucket_le_0_001": 4,
		"goshield_decision_latency_seconds_count":           8,
		"goshield_sessions_active":                          6,
	}
	for name, want := range checks {
		got, ok := findSum(rm, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestExporterTagsDecisionsWithMode(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("goshield-test")

	src := &fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{
				goShield.MetricAuthzGranted: 9,
				goShield.MetricLoginSuccess: 1,
			},
		},
		mode: goShield.AuthorizationModeRealm,
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	granted, ok := findPoint(rm, "goshield_authz_granted_total")
	if !ok || granted.Value != 9 {
		t.Fatalf("expected 9 granted decisions, got %+v", granted)
	}
	if mode, ok := granted.Attributes.Value(attribute.Key("mode")); !ok || mode.AsString() != "realm" {
		t.Fatalf("expected mode=realm on granted, got %v", granted.Attributes)
	}
	login, _ := findPoint(rm, "goshield_login_success_total")
	if login.Attributes.Len() != 0 {
		t.Fatalf("login counter must carry no attributes, got %v", login.Attributes)
	}
}

func TestExporterCollectsWhenSessionCountFails(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("goshield-test")

	src := &fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{goShield.MetricLoginFailure: 2},
		},
		countErr: errors.New("store down"),
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	_ = reader.Collect(context.Background(), &rm)
	if got, ok := findSum(rm, "goshield_login_failure_total"); !ok || got != 2 {
		t.Fatalf("expected login failures despite the store error, got %d %v", got, ok)
	}
	if _, ok := findSum(rm, "goshield_sessions_active"); ok {
		t.Fatal("active sessions must not be observed when the count fails")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newTestMeter()
	meter := provider.Meter("goshield-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil manager, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("goshield-test")

	src := &fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{
				goShield.MetricLoginSuccess: 1,
			},
			Histograms: map[goShield.MetricID][]uint64{
				goShield.MetricDecisionLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goShield.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
