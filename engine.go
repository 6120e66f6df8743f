package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/internal/stores"
	"go.uber.org/zap"
)

// Engine is the rate-limiting engine. It is safe for concurrent use once
// returned by [Builder.Build].
type Engine struct {
	config    Config
	store     rate.Store
	evaluator *rate.Evaluator
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time

	memory  *stores.MemoryStore
	pruner  *stores.Janitor
	closed  atomic.Bool
	closeMu sync.Once
}

// Close stops background work and the audit dispatcher. Pending audit events
// are flushed. Later calls on the Engine fail with [ErrEngineClosed].
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeMu.Do(func() {
		e.closed.Store(true)
		e.pruner.Stop()
		if e.memory != nil {
			_ = e.memory.Close()
		}
		if e.audit != nil {
			e.audit.Close()
		}
		_ = e.logger.Sync()
	})
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the effective configuration, with every lockout
// already capped by MaxLockout.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// CheckAndRecord counts one attempt against dim/action/identifier and
// decides it atomically. risk may be nil; a risk attached with [WithRisk]
// is then used. The returned Result is always well formed: on any error it is
// denied.
func (e *Engine) CheckAndRecord(ctx context.Context, dim Dimension, action Action, identifier string, risk *RiskContext) (Result, error) {
	if risk == nil {
		risk = riskFromContext(ctx)
	}
	return e.check(ctx, ModeRecord, Check{Dimension: dim, Action: action, Identifier: identifier}, risk)
}

// Evaluate reports what the next attempt would see without counting it. It is
// a hint for UIs and must never gate a real attempt; use [Engine.CheckAndRecord].
func (e *Engine) Evaluate(ctx context.Context, dim Dimension, action Action, identifier string, risk *RiskContext) (Result, error) {
	if risk == nil {
		risk = riskFromContext(ctx)
	}
	return e.check(ctx, ModeEvaluate, Check{Dimension: dim, Action: action, Identifier: identifier}, risk)
}

// RecordSuccess forgives every prior attempt for the key after a successful
// authentication or verification. It is idempotent.
func (e *Engine) RecordSuccess(ctx context.Context, dim Dimension, action Action, identifier string) error {
	key, err := e.keyFor(Check{Dimension: dim, Action: action, Identifier: identifier})
	if err != nil {
		return err
	}

	ctx, cancel := e.backendContext(ctx)
	defer cancel()

	existed, err := e.evaluator.RecordSuccess(ctx, key)
	if err != nil {
		e.metricInc(MetricBackendFailure)
		e.logger.Error("record success failed", zap.Stringer("key", key), zap.Error(err))
		return err
	}
	if existed {
		e.metricInc(MetricSuccessRecorded)
	}
	return nil
}

func (e *Engine) check(ctx context.Context, mode Mode, c Check, risk *RiskContext) (Result, error) {
	start := time.Now()
	now := e.Now()

	key, err := e.keyFor(c)
	if err != nil {
		reason := ReasonInvalidIdentifier
		if errors.Is(err, ErrEngineClosed) || errors.Is(err, ErrEngineNotReady) {
			reason = ReasonBackendUnavailable
		} else {
			e.metricInc(MetricInvalidIdentifier)
		}
		return deniedResult(now, reason), err
	}

	p, err := e.policyFor(key)
	if err != nil {
		e.metricInc(MetricConfigMissing)
		e.logger.Error("no rate limit policy for security-critical action",
			zap.String("dimension", key.Dimension.String()),
			zap.String("action", key.Action.String()))
		return deniedResult(now, ReasonConfigurationMissing), err
	}

	if score := risk.score(); score > 0 {
		p = rate.AdjustForRisk(p, score)
		e.metricInc(MetricRiskAdjusted)
	}

	bctx, cancel := e.backendContext(ctx)
	defer cancel()

	var res Result
	if mode == ModeEvaluate {
		res, err = e.evaluator.Evaluate(bctx, key, p)
	} else {
		res, err = e.evaluator.RecordAttempt(bctx, key, p)
		e.metrics.Observe(MetricCheckLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricBackendFailure)
		e.logger.Error("rate limit backend failure, denying",
			zap.Stringer("key", key),
			zap.Error(err))
		if mode == ModeRecord {
			e.emitAudit(ctx, audit.EventFailure, key, p, res, risk, err)
		}
		return res, err
	}

	if mode == ModeEvaluate {
		return res, nil
	}

	switch {
	case res.Allowed:
		e.metricInc(MetricCheckAllowed)
	case res.NewLockout:
		e.metricInc(MetricCheckDenied)
		e.metricInc(MetricLockoutCreated)
		e.logger.Info("lockout created",
			zap.Stringer("key", key),
			zap.Int("ordinal", res.LockoutOrdinal),
			zap.Time("locked_until", res.LockedUntil))
		e.emitAudit(ctx, audit.EventLockout, key, p, res, risk, nil)
	default:
		e.metricInc(MetricCheckDenied)
		if res.Reason == ReasonLocked {
			e.metricInc(MetricLockedRejected)
		}
		if e.config.Audit.RecordDenials {
			e.emitAudit(ctx, audit.EventDenied, key, p, res, risk, nil)
		}
	}
	return res, nil
}

// keyFor validates c and normalizes its identifier.
func (e *Engine) keyFor(c Check) (Key, error) {
	if e == nil || e.evaluator == nil {
		return Key{}, ErrEngineNotReady
	}
	if e.closed.Load() {
		return Key{}, ErrEngineClosed
	}
	if !c.Action.Valid() {
		return Key{}, fmt.Errorf("%w: unknown action %d", ErrInvalidIdentifier, c.Action)
	}
	id, err := NormalizeIdentifier(c.Dimension, c.Identifier)
	if err != nil {
		return Key{}, err
	}
	return Key{Dimension: c.Dimension, Action: c.Action, Identifier: id}, nil
}

// policyFor resolves the registered policy. Missing generic-api policies fall
// back to the permissive default; any other gap is an error.
func (e *Engine) policyFor(key Key) (Policy, error) {
	if p, ok := e.config.Policies.Get(key.Dimension, key.Action); ok {
		return p, nil
	}
	if key.Action.SecurityCritical() {
		return Policy{}, fmt.Errorf("%w: %s/%s", ErrConfigurationMissing, key.Dimension, key.Action)
	}

	e.metricInc(MetricConfigMissing)
	e.logger.Warn("no rate limit policy, using permissive default",
		zap.String("dimension", key.Dimension.String()),
		zap.String("action", key.Action.String()))
	return e.config.PermissiveDefault, nil
}

func (e *Engine) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.BackendTimeout)
}

func deniedResult(now time.Time, reason string) Result {
	return Result{
		Allowed:       false,
		Remaining:     0,
		WindowResetAt: now,
		Reason:        reason,
	}
}
