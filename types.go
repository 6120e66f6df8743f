package goGuard

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

// Dimension is the axis attempts are grouped along: ip, account or session.
type Dimension = rate.Dimension

// Action is the logical operation being throttled.
type Action = rate.Action

// Key identifies one attempt counter (dimension x action x identifier).
type Key = rate.Key

// Policy is the throttle configuration for one dimension and action.
type Policy = rate.Policy

// Escalation maps a violation ordinal to a lockout duration.
type Escalation = rate.Escalation

// Result is the outcome of one evaluation. Callers receive it by value.
type Result = rate.Result

const (
	DimensionIP      = rate.DimensionIP
	DimensionAccount = rate.DimensionAccount
	DimensionSession = rate.DimensionSession
)

const (
	ActionLogin        = rate.ActionLogin
	ActionGenerateCode = rate.ActionGenerateCode
	ActionVerifyCode   = rate.ActionVerifyCode
	ActionResend       = rate.ActionResend
	ActionGenericAPI   = rate.ActionGenericAPI
)

// Reasons carried by [Result.Reason]. They are meant for logs, never for
// end users; see [UserMessage].
const (
	ReasonLocked               = rate.ReasonLocked
	ReasonLimitExceeded        = rate.ReasonLimitExceeded
	ReasonBackendUnavailable   = rate.ReasonBackendUnavailable
	ReasonConfigurationMissing = rate.ReasonConfigurationMissing
	ReasonInvalidIdentifier    = rate.ReasonInvalidIdentifier
)

// ParseDimension maps a wire name ("ip", "account", "session") to a Dimension.
func ParseDimension(s string) (Dimension, error) {
	return rate.ParseDimension(s)
}

// ParseAction maps a wire name ("login", "verify-code", ...) to an Action.
func ParseAction(s string) (Action, error) {
	return rate.ParseAction(s)
}

// AdjustForRisk returns p tightened for a 0-100 risk score. It is pure and
// safe to call from anywhere.
func AdjustForRisk(p Policy, score int) Policy {
	return rate.AdjustForRisk(p, score)
}

// RiskContext is transient, per-request input used to tighten a policy for a
// single evaluation. It is never stored.
type RiskContext struct {
	// Score is an externally computed 0-100 signal; values outside are clamped.
	Score int
	// PriorViolations and Signal are carried into audit metadata only.
	PriorViolations int
	Signal          string
}

func (r *RiskContext) score() int {
	if r == nil {
		return 0
	}
	return r.Score
}

// Identity groups the identifiers a single request can be throttled on.
// Empty fields are skipped.
type Identity struct {
	IP      string
	Account string
	Session string
}

// Check is one dimension of a composite evaluation.
type Check struct {
	Dimension  Dimension
	Action     Action
	Identifier string
}

// Mode selects whether a composite check counts the attempt.
type Mode uint8

const (
	// ModeRecord counts the attempt and is authoritative.
	ModeRecord Mode = iota
	// ModeEvaluate only peeks at state. It is a hint and must not gate access.
	ModeEvaluate
)

// CheckResult is the per-dimension part of a [CompositeResult].
type CheckResult struct {
	Check  Check
	Result Result
	Err    error
}

// CompositeResult merges the results of several checks. Allowed is true only
// when every dimension allowed the attempt.
type CompositeResult struct {
	Allowed         bool
	Results         []CheckResult
	MostRestrictive Result
	Err             error
}

// RetryAfter returns the longest wait asked for by any denied dimension, so a
// caller that honors it is not immediately denied by another dimension.
func (c CompositeResult) RetryAfter(now time.Time) time.Duration {
	if c.Allowed {
		return 0
	}
	var wait time.Duration
	for _, r := range c.Results {
		if d := r.Result.RetryAfter(now); d > wait {
			wait = d
		}
	}
	if wait == 0 {
		wait = c.MostRestrictive.RetryAfter(now)
	}
	return wait
}

// Statistics is a diagnostic snapshot of the counter store. It may be
// slightly inconsistent across entries.
type Statistics struct {
	GeneratedAt    time.Time      `json:"generated_at" yaml:"generated_at"`
	Window         time.Duration  `json:"window" yaml:"window"`
	Tracked        int            `json:"tracked" yaml:"tracked"`
	TrackedKeys    int            `json:"tracked_keys" yaml:"tracked_keys"`
	Locked         int            `json:"locked" yaml:"locked"`
	ActiveInWindow int            `json:"active_in_window" yaml:"active_in_window"`
	ByDimension    map[string]int `json:"by_dimension" yaml:"by_dimension"`
	LockedBy       map[string]int `json:"locked_by_dimension" yaml:"locked_by_dimension"`
	ByAction       map[string]int `json:"by_action" yaml:"by_action"`
}

// NormalizeIdentifier canonicalizes identifier for dim. IPs are parsed and
// rendered in canonical form (IPv4-mapped IPv6 unmapped, zones dropped);
// accounts and sessions are trimmed and lower-cased. An empty or malformed
// identifier returns [ErrInvalidIdentifier].
func NormalizeIdentifier(dim Dimension, identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", fmt.Errorf("%w: empty %s identifier", ErrInvalidIdentifier, dim)
	}

	switch dim {
	case DimensionIP:
		addr, err := netip.ParseAddr(id)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
		}
		return addr.Unmap().WithZone("").String(), nil
	case DimensionAccount, DimensionSession:
		if len(id) > maxIdentifierLength {
			return "", fmt.Errorf("%w: %s identifier longer than %d bytes", ErrInvalidIdentifier, dim, maxIdentifierLength)
		}
		return strings.ToLower(id), nil
	default:
		return "", fmt.Errorf("%w: unknown dimension %d", ErrInvalidIdentifier, dim)
	}
}

const maxIdentifierLength = 320

// UserMessage renders the only text a throttled end user should see. It never
// reveals which dimension tripped or why.
func UserMessage(res Result, now time.Time) string {
	if res.Allowed {
		return ""
	}
	wait := res.RetryAfter(now)
	if wait <= 0 {
		return "Too many attempts. Please try again."
	}
	return fmt.Sprintf("Too many attempts. Please try again in %s.", humanizeWait(wait))
}

func humanizeWait(d time.Duration) string {
	switch {
	case d < time.Minute:
		secs := int((d + time.Second - 1) / time.Second)
		return plural(secs, "second")
	case d < time.Hour:
		mins := int((d + time.Minute - 1) / time.Minute)
		return plural(mins, "minute")
	default:
		hours := int((d + time.Hour - 1) / time.Hour)
		return plural(hours, "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
