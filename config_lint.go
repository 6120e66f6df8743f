package goGuard

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is a configuration that validates but is probably a mistake.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast returns the warnings at or above min.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that pass [Config.Validate] but weaken protection.
// It never fails.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	for d := 0; d < rate.NumDimensions; d++ {
		for a := 0; a < rate.NumActions; a++ {
			p := c.Policies[d][a]
			if p == nil {
				continue
			}
			name := Dimension(d).String() + "/" + Action(a).String()

			if Action(a).SecurityCritical() && p.MaxAttempts > 50 {
				add("max_attempts_high", LintHigh, "%s allows %d attempts per window", name, p.MaxAttempts)
			}
			if len(p.Lockout) == 1 && Action(a).SecurityCritical() {
				add("escalation_flat", LintWarn, "%s never escalates beyond %s", name, p.Lockout[0])
			}
			if m := p.Lockout.Max(); m > c.MaxLockout {
				add("lockout_capped", LintInfo, "%s lockout %s is capped to %s", name, m, c.MaxLockout)
			}
			if p.Window < time.Second {
				add("window_short", LintWarn, "%s window %s is under one second", name, p.Window)
			}
		}
	}

	if c.Policies[DimensionIP][ActionGenericAPI] == nil {
		add("generic_api_unthrottled", LintInfo, "generic-api has no IP policy; the permissive default applies")
	}
	if c.PermissiveDefault.MaxAttempts > 10_000 {
		add("permissive_default_unbounded", LintWarn, "PermissiveDefault allows %d attempts per window", c.PermissiveDefault.MaxAttempts)
	}
	if c.BackendTimeout > 2*time.Second {
		add("backend_timeout_long", LintWarn, "BackendTimeout %s lets a slow store stall requests", c.BackendTimeout)
	}
	if c.Store.Backend == StoreMemory && c.Store.SweepInterval == 0 {
		add("sweep_disabled", LintInfo, "memory store relies on lazy expiry and capacity eviction only")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintInfo, "audit delivery may block callers for up to BackendTimeout when the buffer is full")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "lockouts will not be recorded")
	}

	return ws
}
