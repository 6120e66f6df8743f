package rate

import (
	"context"
	"time"
)

// Reasons carried by [Result.Reason]. They are for logs only.
const (
	ReasonLocked               = "locked"
	ReasonLimitExceeded        = "limit exceeded"
	ReasonBackendUnavailable   = "backend unavailable"
	ReasonConfigurationMissing = "configuration missing"
	ReasonInvalidIdentifier    = "invalid identifier"
)

// Record is the mutable counter state for one key. It is owned by the Store;
// callers only ever see copies.
type Record struct {
	Attempts        int
	WindowStartedAt time.Time
	WindowSize      time.Duration
	LockedUntil     time.Time
	Violations      int
	TouchedAt       time.Time
}

// Locked reports whether the record is locked at now. now == LockedUntil is unlocked.
func (r Record) Locked(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// ExpiresAt is the later of the window end and the lock end.
func (r Record) ExpiresAt() time.Time {
	end := r.WindowStartedAt.Add(r.WindowSize)
	if r.LockedUntil.After(end) {
		return r.LockedUntil
	}
	return end
}

// Result is the outcome of one evaluation.
type Result struct {
	Allowed       bool
	Remaining     int
	WindowResetAt time.Time
	LockedUntil   time.Time
	Reason        string

	// LockoutOrdinal is the violation ordinal of the lock in force, 0 if none.
	LockoutOrdinal int
	// NewLockout is set when this call created the lock.
	NewLockout bool
}

// RetryAfter returns how long a denied caller should wait. Zero when allowed.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	until := r.LockedUntil
	if until.IsZero() {
		until = r.WindowResetAt
	}
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Mutator computes the next record from the current one. found is false when
// no record exists (rec is then the zero value). Returning keep=false deletes
// the record. A mutator may be invoked more than once by optimistic stores and
// must not have side effects beyond capturing its own result.
type Mutator func(rec Record, found bool) (next Record, keep bool)

// Store holds records keyed by [Key]. Implementations must be safe for
// concurrent use and must apply each Update as one atomic read-modify-write.
type Store interface {
	Get(ctx context.Context, key Key) (Record, bool, error)
	Update(ctx context.Context, key Key, fn Mutator) (Record, error)
	Delete(ctx context.Context, key Key) (bool, error)
	Len(ctx context.Context) (int, error)
	// Range visits a point-in-time-ish snapshot. Order is unspecified and
	// returning false stops the iteration.
	Range(ctx context.Context, fn func(Key, Record) bool) error
}

// AttemptLog is the durable attempt history used to survive restarts.
type AttemptLog interface {
	LoadAttempts(ctx context.Context, key Key, since time.Time) (int, error)
	AppendAttempt(ctx context.Context, key Key, at time.Time) error
	DeleteAttempts(ctx context.Context, key Key) error
}
