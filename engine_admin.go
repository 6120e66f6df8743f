package goGuard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"go.uber.org/zap"
)

// Reset clears every trace of key, exactly like a successful attempt. The
// key does not need to have been seen before. It reports whether a record
// existed; resetting twice is not an error.
func (e *Engine) Reset(ctx context.Context, key Key) (bool, error) {
	k, err := e.keyFor(Check{Dimension: key.Dimension, Action: key.Action, Identifier: key.Identifier})
	if err != nil {
		return false, err
	}

	ctx, cancel := e.backendContext(ctx)
	defer cancel()

	existed, err := e.evaluator.RecordSuccess(ctx, k)
	if err != nil {
		e.metricInc(MetricBackendFailure)
		return false, err
	}

	e.metricInc(MetricAdminReset)
	e.logger.Info("rate limit reset", zap.Stringer("key", k), zap.Bool("existed", existed))
	return existed, nil
}

// Unblock lifts the lock and clears the attempt count for identifier on dim
// across every action. Violation history is kept, so a repeat offender still
// escalates. It returns false when there was nothing to unblock.
func (e *Engine) Unblock(ctx context.Context, identifier string, dim Dimension) (bool, error) {
	if _, err := e.keyFor(Check{Dimension: dim, Action: ActionLogin, Identifier: identifier}); err != nil {
		return false, err
	}
	id, _ := NormalizeIdentifier(dim, identifier)

	ctx, cancel := e.backendContext(ctx)
	defer cancel()

	cleared := false
	var errs []error
	for a := 0; a < rate.NumActions; a++ {
		key := Key{Dimension: dim, Action: Action(a), Identifier: id}
		existed, err := e.evaluator.Clear(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cleared = cleared || existed
	}
	if err := errors.Join(errs...); err != nil {
		e.metricInc(MetricBackendFailure)
		return cleared, err
	}

	if cleared {
		e.metricInc(MetricAdminUnblock)
	}
	e.logger.Info("rate limit unblock",
		zap.String("dimension", dim.String()),
		zap.String("identifier", id),
		zap.Bool("existed", cleared))
	return cleared, nil
}

// Statistics aggregates the store over a snapshot iteration. Tracked,
// Locked, ActiveInWindow and the per-dimension counts are per identifier: an
// identifier with records for several actions counts once, and is locked or
// active when any of its records is. TrackedKeys and ByAction count records.
// window selects which records count as active: those touched within the
// last window. A non-positive window counts every tracked record as active.
// Writers are never blocked for longer than one entry's critical section.
func (e *Engine) Statistics(ctx context.Context, window time.Duration) (Statistics, error) {
	if e == nil || e.store == nil {
		return Statistics{}, ErrEngineNotReady
	}
	if e.closed.Load() {
		return Statistics{}, ErrEngineClosed
	}

	now := e.now()
	stats := Statistics{
		GeneratedAt: now,
		Window:      window,
		ByDimension: make(map[string]int, rate.NumDimensions),
		LockedBy:    make(map[string]int, rate.NumDimensions),
		ByAction:    make(map[string]int, rate.NumActions),
	}
	for d := 0; d < rate.NumDimensions; d++ {
		stats.ByDimension[Dimension(d).String()] = 0
		stats.LockedBy[Dimension(d).String()] = 0
	}
	for a := 0; a < rate.NumActions; a++ {
		stats.ByAction[Action(a).String()] = 0
	}

	type subject struct {
		dim Dimension
		id  string
	}
	type subjectState struct {
		locked bool
		active bool
	}
	subjects := make(map[subject]*subjectState)

	since := now.Add(-window)
	err := e.store.Range(ctx, func(key rate.Key, rec rate.Record) bool {
		stats.TrackedKeys++
		stats.ByAction[key.Action.String()]++

		sub := subject{dim: key.Dimension, id: key.Identifier}
		st, ok := subjects[sub]
		if !ok {
			st = &subjectState{}
			subjects[sub] = st
		}
		if rec.Locked(now) {
			st.locked = true
		}
		if window <= 0 || !rec.TouchedAt.Before(since) {
			st.active = true
		}
		return true
	})
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	for sub, st := range subjects {
		stats.Tracked++
		stats.ByDimension[sub.dim.String()]++
		if st.locked {
			stats.Locked++
			stats.LockedBy[sub.dim.String()]++
		}
		if st.active {
			stats.ActiveInWindow++
		}
	}
	return stats, nil
}
