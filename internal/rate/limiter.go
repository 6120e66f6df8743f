package rate

import (
	"context"
	"fmt"
	"time"
)

const defaultLogTimeout = 250 * time.Millisecond

// Evaluator makes allow/deny decisions for single keys.
type Evaluator struct {
	store      Store
	log        AttemptLog
	logTimeout time.Duration
	now        func() time.Time
}

// Option configures an [Evaluator].
type Option func(*Evaluator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAttemptLog makes the evaluator write through to a durable log. Every log
// call is bounded by timeout; a failed call denies the attempt.
func WithAttemptLog(log AttemptLog, timeout time.Duration) Option {
	return func(e *Evaluator) {
		e.log = log
		if timeout > 0 {
			e.logTimeout = timeout
		}
	}
}

// NewEvaluator creates an evaluator over store.
func NewEvaluator(store Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:      store,
		logTimeout: defaultLogTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the evaluator's clock reading.
func (e *Evaluator) Now() time.Time {
	return e.now()
}

// Evaluate reports what an attempt would see right now without counting it.
// It is a hint only and must never gate a real attempt.
func (e *Evaluator) Evaluate(ctx context.Context, key Key, p Policy) (Result, error) {
	now := e.now()

	rec, found, err := e.store.Get(ctx, key)
	if err != nil {
		return backendDenied(p, now), fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !found {
		return Result{
			Allowed:       true,
			Remaining:     p.MaxAttempts,
			WindowResetAt: now.Add(p.Window),
		}, nil
	}
	if rec.Locked(now) {
		return lockedResult(rec, p), nil
	}

	attempts, start := rec.Attempts, rec.WindowStartedAt
	if now.Sub(start) > p.Window {
		attempts, start = 0, now
	}

	remaining := p.MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:       remaining > 0,
		Remaining:     remaining,
		WindowResetAt: start.Add(p.Window),
	}
	if !res.Allowed {
		res.Reason = ReasonLimitExceeded
	}
	return res, nil
}

// RecordAttempt counts one attempt and decides it in the same store update.
func (e *Evaluator) RecordAttempt(ctx context.Context, key Key, p Policy) (Result, error) {
	now := e.now()

	seed, err := e.hydrate(ctx, key, p, now)
	if err != nil {
		return backendDenied(p, now), err
	}

	var (
		res     Result
		counted bool
	)
	_, err = e.store.Update(ctx, key, func(rec Record, found bool) (Record, bool) {
		res, counted = Result{}, false

		if !found {
			rec = Record{Attempts: seed, WindowStartedAt: now}
		}
		rec.WindowSize = p.Window
		rec.TouchedAt = now

		// Lock first: an expired window must never unlock early.
		if rec.Locked(now) {
			res = lockedResult(rec, p)
			return rec, true
		}

		if now.Sub(rec.WindowStartedAt) > p.Window {
			rec.Attempts = 0
			rec.WindowStartedAt = now
		}

		rec.Attempts++
		counted = true

		if rec.Attempts > p.MaxAttempts {
			rec.Violations++
			rec.LockedUntil = now.Add(p.Lockout.DurationFor(rec.Violations))
			rec.WindowStartedAt = rec.LockedUntil
			res = lockedResult(rec, p)
			res.Reason = ReasonLimitExceeded
			res.NewLockout = true
			return rec, true
		}

		res = Result{
			Allowed:       true,
			Remaining:     p.MaxAttempts - rec.Attempts,
			WindowResetAt: rec.WindowStartedAt.Add(p.Window),
		}
		return rec, true
	})
	if err != nil {
		return backendDenied(p, now), fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if counted && e.log != nil {
		if err := e.withLogTimeout(ctx, func(ctx context.Context) error {
			return e.log.AppendAttempt(ctx, key, now)
		}); err != nil {
			return backendDenied(p, now), err
		}
	}

	return res, nil
}

// RecordSuccess forgets every attempt for key. It reports whether a record existed.
func (e *Evaluator) RecordSuccess(ctx context.Context, key Key) (bool, error) {
	existed, err := e.store.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if e.log != nil {
		if err := e.withLogTimeout(ctx, func(ctx context.Context) error {
			return e.log.DeleteAttempts(ctx, key)
		}); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// Clear lifts the lock and zeroes the count for key while keeping its
// violation ordinal, so a repeat offender still escalates. It reports whether
// a record existed.
func (e *Evaluator) Clear(ctx context.Context, key Key) (bool, error) {
	now := e.now()
	existed := false

	_, err := e.store.Update(ctx, key, func(rec Record, found bool) (Record, bool) {
		existed = found
		if !found {
			return rec, false
		}
		rec.Attempts = 0
		rec.LockedUntil = time.Time{}
		rec.WindowStartedAt = now
		rec.TouchedAt = now
		return rec, true
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if e.log != nil {
		if err := e.withLogTimeout(ctx, func(ctx context.Context) error {
			return e.log.DeleteAttempts(ctx, key)
		}); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// hydrate returns the durable attempt count for a key the store has not seen.
func (e *Evaluator) hydrate(ctx context.Context, key Key, p Policy, now time.Time) (int, error) {
	if e.log == nil {
		return 0, nil
	}

	_, found, err := e.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if found {
		return 0, nil
	}

	var n int
	err = e.withLogTimeout(ctx, func(ctx context.Context) error {
		var err error
		n, err = e.log.LoadAttempts(ctx, key, now.Add(-p.Window))
		return err
	})
	return n, err
}

func (e *Evaluator) withLogTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.logTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return fmt.Errorf("%w: attempt log: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func lockedResult(rec Record, p Policy) Result {
	return Result{
		Allowed:        false,
		Remaining:      0,
		WindowResetAt:  rec.WindowStartedAt.Add(p.Window),
		LockedUntil:    rec.LockedUntil,
		Reason:         ReasonLocked,
		LockoutOrdinal: rec.Violations,
	}
}

func backendDenied(p Policy, now time.Time) Result {
	return Result{
		Allowed:       false,
		Remaining:     0,
		WindowResetAt: now.Add(p.Window),
		Reason:        ReasonBackendUnavailable,
	}
}
