package prometheus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goShield "github.com/MrEthical07/goShield"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot goShield.MetricsSnapshot
	dropped  uint64
	mode     string
	sessions int
	countErr error
}

func (f fakeSource) MetricsSnapshot() goShield.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                     { return f.dropped }
func (f fakeSource) AuthorizationMode() string                 { return f.mode }
func (f fakeSource) ActiveSessionCount(context.Context) (int, error) {
	return f.sessions, f.countErr
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters:   map[goShield.MetricID]uint64{},
			Histograms: map[goShield.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{
				goShield.MetricLoginSuccess: 7,
				goShield.MetricAuthzDenied:  3,
			},
			Histograms: map[goShield.MetricID][]uint64{
				goShield.MetricDecisionLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped:  2,
		mode:     goShield.AuthorizationModeRealm,
		sessions: 4,
	})

	out := exp.Render()
	for _, want := range []string{
		"goshield_login_success_total 7",
		"goshield_authz_denied_total{mode=\"realm\"} 3",
		"goshield_session_reaped_total 0",
		"goshield_decision_latency_seconds_bucket{mode=\"realm\",le=\"0.0001\"} 1",
		"goshield_decision_latency_seconds_bucket{mode=\"realm\",le=\"+Inf\"} 36",
		"goshield_decision_latency_seconds_count{mode=\"realm\"} 36",
		"goshield_events_dropped_total 2",
		"# TYPE goshield_sessions_active gauge",
		"goshield_sessions_active 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if out != exp.Render() {
		t.Fatal("render must be deterministic")
	}
}

func TestRenderOmitsActiveSessionsWhenStoreFails(t *testing.T) {
	errStore := errors.New("store down")
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{goShield.MetricLoginSuccess: 2},
		},
		countErr: errStore,
	})

	out, err := exp.RenderContext(context.Background())
	if !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if strings.Contains(out, "goshield_sessions_active") {
		t.Fatalf("active sessions must be left out, got:\n%s", out)
	}
	if !strings.Contains(out, "goshield_login_success_total 2") {
		t.Fatalf("other families must still render, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters:   map[goShield.MetricID]uint64{goShield.MetricLoginSuccess: 1},
			Histograms: map[goShield.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderFromSecurityManager(t *testing.T) {
	realm := goShield.NewSimpleRealm("local", nil)
	if err := realm.AddAccount("alice", []byte("pw")); err != nil {
		t.Fatalf("add account: %v", err)
	}
	sm, err := goShield.New().
		WithRealm(realm).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sm.Close()

	if _, err := sm.Login(context.Background(), goShield.NewUsernamePasswordToken("alice", []byte("pw"), "")); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := sm.StartSession(context.Background(), "10.0.0.1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := sm.IsPermitted(context.Background(), goShield.NewPrincipals("alice"), "printer:print"); err != nil {
		t.Fatalf("is permitted: %v", err)
	}

	out := NewPrometheusExporter(sm).Render()
	for _, want := range []string{
		"goshield_login_success_total 1",
		"goshield_authz_denied_total{mode=\"realm\"} 1",
		"goshield_sessions_active 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderCountsRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sm, err := goShield.New().
		WithRealm(goShield.NewSimpleRealm("local", nil)).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sm.Close()

	ctx := context.Background()
	for range 3 {
		if _, err := sm.StartSession(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("start session: %v", err)
		}
	}
	if out := NewPrometheusExporter(sm).Render(); !strings.Contains(out, "goshield_sessions_active 3") {
		t.Fatalf("expected three redis sessions, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goShield.MetricsSnapshot{
			Counters: map[goShield.MetricID]uint64{
				goShield.MetricLoginSuccess:   1000,
				goShield.MetricLoginFailure:   40,
				goShield.MetricSessionStarted: 800,
				goShield.MetricSessionExpired: 20,
				goShield.MetricAuthzGranted:   90000,
				goShield.MetricAuthzDenied:    300,
			},
			Histograms: map[goShield.MetricID][]uint64{
				goShield.MetricDecisionLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
