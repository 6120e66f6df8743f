package stores

import (
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func accountKey(id string) rate.Key {
	return rate.Key{Dimension: rate.DimensionAccount, Action: rate.ActionLogin, Identifier: id}
}

// put stores rec unconditionally.
func put(rec rate.Record) rate.Mutator {
	return func(rate.Record, bool) (rate.Record, bool) { return rec, true }
}

// bump adds one attempt, starting a window at now when the key is new.
func bump(now time.Time, window time.Duration) rate.Mutator {
	return func(rec rate.Record, found bool) (rate.Record, bool) {
		if !found {
			rec = rate.Record{WindowStartedAt: now, WindowSize: window}
		}
		rec.Attempts++
		rec.TouchedAt = now
		return rec, true
	}
}
