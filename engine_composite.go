package goGuard

import (
	"context"
	"errors"
)

// CheckAll evaluates every check for one logical attempt and merges the
// results conservatively. Every dimension is consulted, even after one has
// denied, so each counter sees the attempt. A dimension that fails is treated
// as denied and its error is joined into Err. A risk attached with [WithRisk]
// applies to every dimension.
func (e *Engine) CheckAll(ctx context.Context, checks []Check, mode Mode) CompositeResult {
	out := CompositeResult{
		Allowed: len(checks) > 0,
		Results: make([]CheckResult, 0, len(checks)),
	}
	if len(checks) == 0 {
		out.MostRestrictive = deniedResult(e.Now(), ReasonInvalidIdentifier)
		out.Err = errors.Join(out.Err, ErrInvalidIdentifier)
		return out
	}

	risk := riskFromContext(ctx)
	var errs []error
	for i, c := range checks {
		res, err := e.check(ctx, mode, c, risk)
		if err != nil {
			res.Allowed = false
			errs = append(errs, err)
		}
		if !res.Allowed {
			out.Allowed = false
		}
		out.Results = append(out.Results, CheckResult{Check: c, Result: res, Err: err})

		if i == 0 || moreRestrictive(res, out.MostRestrictive) {
			out.MostRestrictive = res
		}
	}
	out.Err = errors.Join(errs...)
	return out
}

// CheckAndRecordAll counts one attempt of action for every non-empty field of
// id and returns the merged outcome.
func (e *Engine) CheckAndRecordAll(ctx context.Context, action Action, id Identity, risk *RiskContext) CompositeResult {
	if risk != nil {
		ctx = WithRisk(ctx, risk)
	}
	return e.CheckAll(ctx, id.checks(action), ModeRecord)
}

// RecordSuccessAll forgives action for every non-empty field of id.
func (e *Engine) RecordSuccessAll(ctx context.Context, action Action, id Identity) error {
	var errs []error
	for _, c := range id.checks(action) {
		if err := e.RecordSuccess(ctx, c.Dimension, c.Action, c.Identifier); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (id Identity) checks(action Action) []Check {
	checks := make([]Check, 0, 3)
	if id.IP != "" {
		checks = append(checks, Check{Dimension: DimensionIP, Action: action, Identifier: id.IP})
	}
	if id.Account != "" {
		checks = append(checks, Check{Dimension: DimensionAccount, Action: action, Identifier: id.Account})
	}
	if id.Session != "" {
		checks = append(checks, Check{Dimension: DimensionSession, Action: action, Identifier: id.Session})
	}
	return checks
}

// moreRestrictive orders denied before allowed, then fewer remaining
// attempts, then the earlier window reset.
func moreRestrictive(a, b Result) bool {
	if a.Allowed != b.Allowed {
		return !a.Allowed
	}
	if a.Remaining != b.Remaining {
		return a.Remaining < b.Remaining
	}
	return a.WindowResetAt.Before(b.WindowResetAt)
}
