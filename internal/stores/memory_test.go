package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

func newMemory(t *testing.T, cfg MemoryConfig) (*MemoryStore, *testClock) {
	t.Helper()
	clock := newTestClock()
	cfg.Clock = clock.Now
	s, err := NewMemoryStore(cfg)
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestMemoryStore_UpdateGetDelete(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 16, Shards: 2})
	ctx := context.Background()
	k := accountKey("alice")

	if _, found, err := s.Get(ctx, k); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Update(ctx, k, bump(clock.Now(), time.Minute)); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	rec, found, err := s.Get(ctx, k)
	if err != nil || !found || rec.Attempts != 3 {
		t.Fatalf("unexpected get: %+v found=%v err=%v", rec, found, err)
	}

	existed, err := s.Delete(ctx, k)
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, _ = s.Delete(ctx, k)
	if existed {
		t.Fatal("second delete must report no record")
	}
}

func TestMemoryStore_MutatorCanDelete(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 16, Shards: 1})
	ctx := context.Background()
	k := accountKey("bob")

	s.Update(ctx, k, bump(clock.Now(), time.Minute))
	s.Update(ctx, k, func(rate.Record, bool) (rate.Record, bool) { return rate.Record{}, false })

	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("expected empty store, got %d", n)
	}
}

func TestMemoryStore_EvictsOldestUnlocked(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 2, Shards: 1})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		s.Update(ctx, accountKey(id), bump(clock.Now(), time.Minute))
	}

	if _, found, _ := s.Get(ctx, accountKey("a")); found {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, id := range []string{"b", "c"} {
		if _, found, _ := s.Get(ctx, accountKey(id)); !found {
			t.Fatalf("entry %s missing", id)
		}
	}
	if s.Evicted() != 1 {
		t.Fatalf("evicted %d, want 1", s.Evicted())
	}
}

func TestMemoryStore_NeverEvictsLockedWhileRoomRemains(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 4, Shards: 1})
	ctx := context.Background()
	now := clock.Now()

	locked := rate.Record{
		Attempts:        6,
		WindowStartedAt: now.Add(time.Hour),
		WindowSize:      time.Minute,
		LockedUntil:     now.Add(time.Hour),
		Violations:      1,
		TouchedAt:       now,
	}
	for i := 0; i < 4; i++ {
		s.Update(ctx, accountKey(fmt.Sprintf("locked-%d", i)), put(locked))
	}
	s.Update(ctx, accountKey("free-1"), bump(now, time.Minute))
	s.Update(ctx, accountKey("free-2"), bump(now, time.Minute))

	for i := 0; i < 4; i++ {
		if _, found, _ := s.Get(ctx, accountKey(fmt.Sprintf("locked-%d", i))); !found {
			t.Fatalf("locked entry %d was evicted", i)
		}
	}
	if _, found, _ := s.Get(ctx, accountKey("free-1")); found {
		t.Fatal("unlocked entry should have made room")
	}
	if _, found, _ := s.Get(ctx, accountKey("free-2")); !found {
		t.Fatal("entry just written must survive")
	}
}

func TestMemoryStore_ExpiryAndSweep(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 16, Shards: 4, IdleGrace: time.Second})
	ctx := context.Background()
	now := clock.Now()

	s.Update(ctx, accountKey("idle"), bump(now, time.Minute))
	s.Update(ctx, accountKey("locked"), put(rate.Record{
		Attempts:        3,
		WindowStartedAt: now,
		WindowSize:      time.Minute,
		LockedUntil:     now.Add(time.Hour),
		TouchedAt:       now,
	}))

	clock.Advance(2 * time.Minute)

	if _, found, _ := s.Get(ctx, accountKey("idle")); found {
		t.Fatal("idle record must read as absent once expired")
	}
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
	if _, found, _ := s.Get(ctx, accountKey("locked")); !found {
		t.Fatal("locked record must outlive its window")
	}
	if s.Expired() != 1 {
		t.Fatalf("expired counter %d, want 1", s.Expired())
	}
}

func TestMemoryStore_Range(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 64, Shards: 8})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.Update(ctx, accountKey(fmt.Sprintf("u%d", i)), bump(clock.Now(), time.Minute))
	}

	seen := 0
	if err := s.Range(ctx, func(rate.Key, rate.Record) bool { seen++; return true }); err != nil {
		t.Fatalf("range: %v", err)
	}
	if seen != 10 {
		t.Fatalf("range saw %d, want 10", seen)
	}

	seen = 0
	s.Range(ctx, func(rate.Key, rate.Record) bool { seen++; return seen < 3 })
	if seen != 3 {
		t.Fatalf("early stop saw %d, want 3", seen)
	}
}

func TestMemoryStore_ConcurrentUpdatesAreAtomic(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 16, Shards: 4})
	ctx := context.Background()
	k := accountKey("hot")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(ctx, k, bump(clock.Now(), time.Hour))
		}()
	}
	wg.Wait()

	rec, _, _ := s.Get(ctx, k)
	if rec.Attempts != 100 {
		t.Fatalf("attempts %d, want 100", rec.Attempts)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s, clock := newMemory(t, MemoryConfig{MaxEntries: 16, Shards: 1, SweepInterval: time.Minute})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := s.Update(context.Background(), accountKey("x"), bump(clock.Now(), time.Minute))
	if !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if s.Sweep() != 0 {
		t.Fatal("closed store must not sweep")
	}
}

func TestMemoryStore_RejectsNegativeGrace(t *testing.T) {
	if _, err := NewMemoryStore(MemoryConfig{IdleGrace: -time.Second}); err == nil {
		t.Fatal("expected error for negative idle grace")
	}
}
