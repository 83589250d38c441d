package goShield

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goShield/authz"
	"github.com/MrEthical07/goShield/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRejectsBadWiring(t *testing.T) {
	if _, err := New().Build(); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState without realms, got %v", err)
	}
	if _, err := New().WithRealm(nil).Build(); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState for nil realm, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Authorization.Strategy = "majority"
	if _, err := New().WithConfig(cfg).WithRealm(newTestRealm(t, "local")).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Authorization.Mode = AuthorizationModeModules
	dup := authz.ModuleFunc{ID: "realm-roles"}
	_, err := New().WithConfig(cfg).WithRealm(newTestRealm(t, "local")).WithModules(dup).Build()
	if !errors.Is(err, ErrIllegalState) || !errors.Is(err, authz.ErrInvalidModule) {
		t.Fatalf("expected duplicate module rejection, got %v", err)
	}
}

func TestBuilderCannotBeReused(t *testing.T) {
	b := New().WithRealm(newTestRealm(t, "local")).WithLogger(discardLogger())
	sm, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer sm.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestSecurityManagerConfigIsCopied(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	cfg := sm.Config()
	cfg.Session.RedisPrefix = "changed"
	if sm.Config().Session.RedisPrefix == "changed" {
		t.Fatal("Config must return a copy")
	}
	if len(sm.Realms()) != 1 || sm.Realms()[0].Name() != "local" {
		t.Fatalf("unexpected realms: %v", sm.Realms())
	}
}

type failingLogoutRealm struct {
	*SimpleRealm
}

var errLogoutFailed = errors.New("revocation list unavailable")

func (failingLogoutRealm) OnLogout(context.Context, PrincipalCollection) error {
	return errLogoutFailed
}

func TestSecurityManagerLogoutJoinsRealmErrors(t *testing.T) {
	notified := &countingRealm{SimpleRealm: newTestRealm(t, "second")}
	sm := newTestSecurityManager(t, func(b *Builder) {
		b.WithRealms(failingLogoutRealm{newTestRealm(t, "first")}, notified).WithMetricsEnabled(true)
	})
	ctx := context.Background()

	err := sm.Logout(ctx, NewPrincipals("alice"))
	if !errors.Is(err, errLogoutFailed) {
		t.Fatalf("expected realm logout error, got %v", err)
	}
	if notified.logouts.Load() != 1 {
		t.Fatal("a failing realm must not stop the others from being notified")
	}
	if sm.Metrics().Value(MetricLogout) != 1 {
		t.Fatalf("expected logout counted")
	}

	if err := sm.Logout(ctx, PrincipalCollection{}); err != nil {
		t.Fatalf("empty logout must be a no-op, got %v", err)
	}
}

func TestSecurityManagerReaperRecordsMetricsAndEvents(t *testing.T) {
	clock := newTestClock()
	sink := NewChannelSink(16)
	sm := newTestSecurityManager(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.Session.DefaultTimeout = Duration(time.Minute)
		cfg.Events.Async = false
		cfg.Metrics.Enabled = true
		b.WithConfig(cfg).WithClock(clock.Now).WithEventSink(sink)
	})
	ctx := WithClientHost(context.Background(), "198.51.100.4")

	h, err := sm.StartSession(ctx, "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if snap, _ := h.Snapshot(ctx); snap.Host != "198.51.100.4" {
		t.Fatalf("expected host from context, got %q", snap.Host)
	}
	clock.Advance(2 * time.Minute)

	n, err := sm.Reaper().SweepOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
	if sm.Metrics().Value(MetricSessionReaped) != 1 || sm.Metrics().Value(MetricSessionExpired) != 1 {
		t.Fatalf("unexpected session metrics: %v", sm.Metrics().Snapshot().Counters)
	}

	first := <-sink.Events()
	second := <-sink.Events()
	if first.Type != EventSessionStart || second.Type != EventSessionExpire || second.SessionID != h.ID() {
		t.Fatalf("unexpected events: %+v %+v", first, second)
	}
}

func TestSecurityManagerStartAndCloseAreIdempotent(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sm.Start(ctx)
	sm.Start(ctx)
	sm.Close()
	sm.Close()
}

func TestSecurityManagerWithoutReaper(t *testing.T) {
	sm := newTestSecurityManager(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.Session.ReaperEnabled = false
		b.WithConfig(cfg)
	})
	if sm.Reaper() != nil {
		t.Fatal("reaper must be nil when disabled")
	}
	sm.Start(context.Background())
}

func TestSecurityManagerOverRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingRealm{SimpleRealm: newTestRealm(t, "local")}
	cfg := DefaultConfig()
	cfg.Cache.Enabled = true
	cfg.Metrics.Enabled = true
	sm, err := New().WithConfig(cfg).WithRedis(rdb).WithRealm(inner).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sm.Close()

	if _, ok := sm.Sessions().DAO().(*session.RedisDAO); !ok {
		t.Fatalf("expected Redis session DAO, got %T", sm.Sessions().DAO())
	}

	ctx := context.Background()
	s := sm.NewSubject("203.0.113.5")
	if err := s.Login(ctx, NewUsernamePasswordToken("alice", []byte("wonderland"), "")); err != nil {
		t.Fatalf("login: %v", err)
	}
	h, err := s.Session(ctx, true)
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	resumed, err := sm.ResumeSubject(ctx, h.ID())
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Principal() != "alice" {
		t.Fatalf("expected principals to survive the store, got %q", resumed.Principal())
	}

	for i := 0; i < 3; i++ {
		if ok, err := resumed.IsPermitted(ctx, "printer:print"); err != nil || !ok {
			t.Fatalf("round %d: %v %v", i, ok, err)
		}
	}
	if inner.permCalls.Load() != 1 {
		t.Fatalf("expected Redis cache to absorb repeats, got %d realm calls", inner.permCalls.Load())
	}
	if sm.Metrics().Value(MetricCacheHit) != 2 {
		t.Fatalf("expected 2 cache hits, got %d", sm.Metrics().Value(MetricCacheHit))
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := sm.ResumeSubject(ctx, h.ID()); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected stopped session to be gone, got %v", err)
	}
}
