package goGuard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Get(context.Context, Key) (Record, bool, error) {
	return Record{}, false, errBoom
}

func (brokenStore) Update(context.Context, Key, Mutator) (Record, error) {
	return Record{}, errBoom
}

func (brokenStore) Delete(context.Context, Key) (bool, error) {
	return false, errBoom
}

func (brokenStore) Len(context.Context) (int, error) {
	return 0, errBoom
}

func (brokenStore) Range(context.Context, func(Key, Record) bool) error {
	return errBoom
}

// brokenIPStore fails only for keys on the IP dimension.
type brokenIPStore struct {
	Store
}

func (s brokenIPStore) Update(ctx context.Context, key Key, fn Mutator) (Record, error) {
	if key.Dimension == DimensionIP {
		return Record{}, errBoom
	}
	return s.Store.Update(ctx, key, fn)
}

// testConfig is the default config with small budgets for the login action
// so tests stay short.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Store.SweepInterval = 0
	cfg.Policies.Set(DimensionIP, ActionLogin, Policy{
		Window:      time.Minute,
		MaxAttempts: 5,
		Lockout:     Escalation{time.Minute, 5 * time.Minute},
	})
	cfg.Policies.Set(DimensionAccount, ActionLogin, Policy{
		Window:      time.Minute,
		MaxAttempts: 3,
		Lockout:     Escalation{2 * time.Minute, 10 * time.Minute},
	})
	cfg.Policies.Set(DimensionSession, ActionLogin, Policy{
		Window:      time.Minute,
		MaxAttempts: 10,
		Lockout:     Escalation{time.Minute},
	})
	return cfg
}

func newTestEngine(t *testing.T, clock *fakeClock, configure func(*Builder)) *Engine {
	t.Helper()

	b := New().WithConfig(testConfig()).WithClock(clock.Now)
	if configure != nil {
		configure(b)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func mustRecord(t *testing.T, e *Engine, dim Dimension, action Action, id string) Result {
	t.Helper()

	res, err := e.CheckAndRecord(context.Background(), dim, action, id, nil)
	if err != nil {
		t.Fatalf("CheckAndRecord(%s, %s, %q) failed: %v", dim, action, id, err)
	}
	return res
}

func waitEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()

	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}
