package rate

import (
	"fmt"
	"time"
)

// MaxRiskReductionPercent caps how far a risk score can shrink MaxAttempts.
const MaxRiskReductionPercent = 80

// Escalation maps a violation ordinal to a lockout duration. Ordinal 1 is the
// first lockout; ordinals past the end use the last entry.
type Escalation []time.Duration

// DurationFor returns the lockout for the given violation ordinal.
func (e Escalation) DurationFor(ordinal int) time.Duration {
	if len(e) == 0 {
		return 0
	}
	if ordinal < 1 {
		ordinal = 1
	}
	if ordinal > len(e) {
		ordinal = len(e)
	}
	return e[ordinal-1]
}

// Max returns the capped (final) lockout duration.
func (e Escalation) Max() time.Duration {
	if len(e) == 0 {
		return 0
	}
	return e[len(e)-1]
}

// Capped returns a copy of e with every step clamped to limit.
func (e Escalation) Capped(limit time.Duration) Escalation {
	out := make(Escalation, len(e))
	for i, d := range e {
		if limit > 0 && d > limit {
			d = limit
		}
		out[i] = d
	}
	return out
}

// Validate checks that the table is non-empty, positive, and non-decreasing.
func (e Escalation) Validate() error {
	if len(e) == 0 {
		return fmt.Errorf("%w: empty lockout table", ErrInvalidPolicy)
	}
	for i, d := range e {
		if d <= 0 {
			return fmt.Errorf("%w: lockout step %d must be > 0", ErrInvalidPolicy, i+1)
		}
		if i > 0 && d < e[i-1] {
			return fmt.Errorf("%w: lockout step %d (%s) shorter than step %d (%s)", ErrInvalidPolicy, i+1, d, i, e[i-1])
		}
	}
	return nil
}

// Policy is the immutable throttle configuration for one dimension and action.
type Policy struct {
	Window      time.Duration
	MaxAttempts int
	Lockout     Escalation
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0", ErrInvalidPolicy)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1", ErrInvalidPolicy)
	}
	return p.Lockout.Validate()
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	p.Lockout = append(Escalation(nil), p.Lockout...)
	return p
}

// AdjustForRisk tightens p for a 0-100 risk score. The reduction is
// min(score, 80) percent: MaxAttempts shrinks by it (never below 1) and every
// lockout step grows by it. The window is unchanged.
func AdjustForRisk(p Policy, score int) Policy {
	r := clampScore(score)
	if r > MaxRiskReductionPercent {
		r = MaxRiskReductionPercent
	}
	if r == 0 {
		return p
	}

	maxAttempts := p.MaxAttempts * (100 - r) / 100
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	lockout := make(Escalation, len(p.Lockout))
	for i, d := range p.Lockout {
		lockout[i] = d * time.Duration(100+r) / 100
	}

	return Policy{
		Window:      p.Window,
		MaxAttempts: maxAttempts,
		Lockout:     lockout,
	}
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
