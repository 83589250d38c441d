package goShield

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goShield/permission"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRealm returns a realm with two accounts:
// alice (operator: printer:print, printer:query) and
// root (admin: *).
func newTestRealm(tb testing.TB, name string) *SimpleRealm {
	tb.Helper()

	roles := permission.NewRoleManager(nil)
	if err := roles.RegisterRole("operator", []string{"printer:print", "printer:query"}); err != nil {
		tb.Fatalf("register operator: %v", err)
	}
	if err := roles.RegisterRole("admin", []string{"*"}); err != nil {
		tb.Fatalf("register admin: %v", err)
	}

	realm := NewSimpleRealm(name, roles)
	if err := realm.AddAccount("alice", []byte("wonderland"), "operator"); err != nil {
		tb.Fatalf("add alice: %v", err)
	}
	if err := realm.AddAccount("root", []byte("toor"), "admin"); err != nil {
		tb.Fatalf("add root: %v", err)
	}
	return realm
}

func newTestSecurityManager(tb testing.TB, mutate func(*Builder)) *SecurityManager {
	tb.Helper()

	b := New().
		WithRealm(newTestRealm(tb, "local")).
		WithLogger(discardLogger())
	if mutate != nil {
		mutate(b)
	}
	sm, err := b.Build()
	if err != nil {
		tb.Fatalf("build: %v", err)
	}
	tb.Cleanup(sm.Close)
	return sm
}
