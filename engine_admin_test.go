package goGuard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResetIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)
	ctx := context.Background()
	key := Key{Dimension: DimensionAccount, Action: ActionLogin, Identifier: "alice"}

	existed, err := e.Reset(ctx, key)
	if err != nil || existed {
		t.Fatalf("reset of unknown key: existed=%v err=%v", existed, err)
	}

	for i := 0; i < 4; i++ {
		mustRecord(t, e, DimensionAccount, ActionLogin, "alice")
	}

	existed, err = e.Reset(ctx, key)
	if err != nil || !existed {
		t.Fatalf("reset of locked key: existed=%v err=%v", existed, err)
	}
	existed, err = e.Reset(ctx, key)
	if err != nil || existed {
		t.Fatalf("second reset: existed=%v err=%v", existed, err)
	}

	// Reset forgets violations too: the next lockout starts at ordinal 1.
	for i := 0; i < 3; i++ {
		if res := mustRecord(t, e, DimensionAccount, ActionLogin, "alice"); !res.Allowed {
			t.Fatalf("attempt %d after reset should be allowed", i+1)
		}
	}
	res := mustRecord(t, e, DimensionAccount, ActionLogin, "alice")
	if res.LockoutOrdinal != 1 {
		t.Fatalf("expected ordinal 1 after reset, got %d", res.LockoutOrdinal)
	}

	if got := e.MetricsSnapshot().Counters[MetricAdminReset]; got != 3 {
		t.Fatalf("expected 3 admin resets, got %d", got)
	}
}

func TestResetNormalizesIdentifier(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)
	mustRecord(t, e, DimensionAccount, ActionLogin, "alice")

	existed, err := e.Reset(context.Background(), Key{Dimension: DimensionAccount, Action: ActionLogin, Identifier: " ALICE "})
	if err != nil || !existed {
		t.Fatalf("expected normalized reset to hit, existed=%v err=%v", existed, err)
	}
}

func TestUnblockKeepsViolations(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mustRecord(t, e, DimensionAccount, ActionLogin, "alice")
	}
	mustRecord(t, e, DimensionAccount, ActionVerifyCode, "alice")

	cleared, err := e.Unblock(ctx, "Alice", DimensionAccount)
	if err != nil || !cleared {
		t.Fatalf("Unblock: cleared=%v err=%v", cleared, err)
	}

	for i := 0; i < 3; i++ {
		if res := mustRecord(t, e, DimensionAccount, ActionLogin, "alice"); !res.Allowed {
			t.Fatalf("attempt %d after unblock should be allowed", i+1)
		}
	}
	res := mustRecord(t, e, DimensionAccount, ActionLogin, "alice")
	if res.LockoutOrdinal != 2 {
		t.Fatalf("violation history must survive unblock, got ordinal %d", res.LockoutOrdinal)
	}
	if got := res.RetryAfter(clock.Now()); got != 10*time.Minute {
		t.Fatalf("expected escalated 10m lock, got %s", got)
	}

	res, err = e.Evaluate(ctx, DimensionAccount, ActionVerifyCode, "alice", nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if want := e.Config().Policies[DimensionAccount][ActionVerifyCode].MaxAttempts; res.Remaining != want {
		t.Fatalf("unblock should clear every action, remaining=%d want %d", res.Remaining, want)
	}

	if got := e.MetricsSnapshot().Counters[MetricAdminUnblock]; got != 1 {
		t.Fatalf("expected 1 admin unblock, got %d", got)
	}
}

func TestUnblockNothingToDo(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)

	cleared, err := e.Unblock(context.Background(), "192.0.2.200", DimensionIP)
	if err != nil || cleared {
		t.Fatalf("expected nothing to unblock, cleared=%v err=%v", cleared, err)
	}
	if got := e.MetricsSnapshot().Counters[MetricAdminUnblock]; got != 0 {
		t.Fatalf("expected no unblock metric, got %d", got)
	}

	if _, err := e.Unblock(context.Background(), "not-an-ip", DimensionIP); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mustRecord(t, e, DimensionAccount, ActionLogin, "alice")
	}
	clock.Advance(30 * time.Second)
	mustRecord(t, e, DimensionAccount, ActionLogin, "bob")
	mustRecord(t, e, DimensionIP, ActionVerifyCode, "192.0.2.1")

	stats, err := e.Statistics(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Tracked != 3 || stats.TrackedKeys != 3 || stats.Locked != 1 || stats.ActiveInWindow != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.ByDimension["account"] != 2 || stats.ByDimension["ip"] != 1 || stats.ByDimension["session"] != 0 {
		t.Fatalf("unexpected per-dimension counts: %+v", stats.ByDimension)
	}
	if stats.LockedBy["account"] != 1 || stats.LockedBy["ip"] != 0 {
		t.Fatalf("unexpected locked counts: %+v", stats.LockedBy)
	}
	if stats.ByAction["login"] != 2 || stats.ByAction["verify-code"] != 1 || stats.ByAction["resend"] != 0 {
		t.Fatalf("unexpected per-action counts: %+v", stats.ByAction)
	}
	if !stats.GeneratedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected GeneratedAt %s", stats.GeneratedAt)
	}

	all, err := e.Statistics(ctx, 0)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if all.ActiveInWindow != 3 {
		t.Fatalf("zero window should count every record, got %d", all.ActiveInWindow)
	}
}

func TestStatisticsCountsIdentifiersOnce(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), nil)

	mustRecord(t, e, DimensionIP, ActionLogin, "192.0.2.1")
	mustRecord(t, e, DimensionIP, ActionVerifyCode, "192.0.2.1")
	for i := 0; i < 4; i++ {
		mustRecord(t, e, DimensionAccount, ActionLogin, "alice")
	}
	mustRecord(t, e, DimensionAccount, ActionResend, "alice")

	stats, err := e.Statistics(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Tracked != 2 || stats.TrackedKeys != 4 {
		t.Fatalf("expected 2 identifiers over 4 keys, got %d over %d", stats.Tracked, stats.TrackedKeys)
	}
	if stats.ByDimension["ip"] != 1 || stats.ByDimension["account"] != 1 {
		t.Fatalf("unexpected per-dimension counts: %+v", stats.ByDimension)
	}
	if stats.Locked != 1 || stats.LockedBy["account"] != 1 {
		t.Fatalf("alice is locked on login and must count once, got %+v", stats)
	}
	if stats.ActiveInWindow != 2 {
		t.Fatalf("expected 2 active identifiers, got %d", stats.ActiveInWindow)
	}
	if stats.ByAction["login"] != 2 || stats.ByAction["verify-code"] != 1 || stats.ByAction["resend"] != 1 {
		t.Fatalf("unexpected per-action counts: %+v", stats.ByAction)
	}
}

func TestStatisticsBackendFailure(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), func(b *Builder) {
		b.WithStore(brokenStore{})
	})

	if _, err := e.Statistics(context.Background(), time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
