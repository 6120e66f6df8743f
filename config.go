package goGuard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Policies PolicyTable

	// PermissiveDefault applies to non-security-critical actions that have no
	// policy of their own.
	PermissiveDefault Policy

	// MaxLockout caps every lockout step, including risk-free ones.
	MaxLockout time.Duration

	// BackendTimeout bounds each store call made on behalf of a request.
	BackendTimeout time.Duration

	Store      StoreConfig
	AttemptLog AttemptLogConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
POLICY TABLE
====================================
*/

// PolicyTable is indexed by dimension then action. A nil entry means no
// policy is registered.
type PolicyTable [rate.NumDimensions][rate.NumActions]*Policy

// Get returns the policy for dim and action, if one is registered.
func (t PolicyTable) Get(dim Dimension, action Action) (Policy, bool) {
	if !dim.Valid() || !action.Valid() {
		return Policy{}, false
	}
	p := t[dim][action]
	if p == nil {
		return Policy{}, false
	}
	return *p, true
}

// Set registers p for dim and action. Invalid enum values are ignored.
func (t *PolicyTable) Set(dim Dimension, action Action, p Policy) {
	if !dim.Valid() || !action.Valid() {
		return
	}
	cp := p.Clone()
	t[dim][action] = &cp
}

// Remove unregisters the policy for dim and action.
func (t *PolicyTable) Remove(dim Dimension, action Action) {
	if !dim.Valid() || !action.Valid() {
		return
	}
	t[dim][action] = nil
}

func (t PolicyTable) clone() PolicyTable {
	var out PolicyTable
	for d := range t {
		for a := range t[d] {
			if t[d][a] != nil {
				cp := t[d][a].Clone()
				out[d][a] = &cp
			}
		}
	}
	return out
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend selects the counting authority.
type StoreBackend string

const (
	// StoreMemory keeps counters in process. The default.
	StoreMemory StoreBackend = "memory"
	// StoreRedis keeps counters in a linearizable Redis instance.
	StoreRedis StoreBackend = "redis"
)

// StoreConfig tunes the counter store.
type StoreConfig struct {
	Backend StoreBackend

	// Memory
	MaxEntries    int
	Shards        int
	IdleGrace     time.Duration
	SweepInterval time.Duration

	// Redis
	RedisPrefix     string
	RedisMaxRetries int
}

// AttemptLogConfig tunes the durable attempt history. It is active only when
// a log is supplied through [Builder.WithAttemptLog].
type AttemptLogConfig struct {
	Timeout       time.Duration
	PruneInterval time.Duration
	// Retention is how far back pruning keeps rows. It must cover the
	// longest policy window.
	Retention time.Duration
}

// AuditConfig controls asynchronous violation delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// RecordDenials also emits an event for every denied attempt, not only
	// for new lockouts.
	RecordDenials bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

var standardEscalation = Escalation{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour}

func defaultConfig() Config {
	cfg := Config{
		PermissiveDefault: Policy{
			Window:      time.Minute,
			MaxAttempts: 1000,
			Lockout:     Escalation{time.Minute},
		},
		MaxLockout:     time.Hour,
		BackendTimeout: 250 * time.Millisecond,
		Store: StoreConfig{
			Backend:         StoreMemory,
			MaxEntries:      100_000,
			Shards:          64,
			IdleGrace:       5 * time.Minute,
			SweepInterval:   time.Minute,
			RedisPrefix:     "gg",
			RedisMaxRetries: 100,
		},
		AttemptLog: AttemptLogConfig{
			Timeout:       250 * time.Millisecond,
			PruneInterval: 10 * time.Minute,
			Retention:     24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}

	set := func(dim Dimension, action Action, window time.Duration, max int, lockout Escalation) {
		cfg.Policies.Set(dim, action, Policy{Window: window, MaxAttempts: max, Lockout: lockout})
	}

	set(DimensionIP, ActionLogin, 15*time.Minute, 20, standardEscalation)
	set(DimensionAccount, ActionLogin, 15*time.Minute, 5, standardEscalation)
	set(DimensionSession, ActionLogin, 15*time.Minute, 10, standardEscalation)

	codeEscalation := Escalation{5 * time.Minute, 15 * time.Minute, time.Hour}
	set(DimensionIP, ActionGenerateCode, time.Hour, 10, codeEscalation)
	set(DimensionAccount, ActionGenerateCode, time.Hour, 5, codeEscalation)
	set(DimensionSession, ActionGenerateCode, time.Hour, 5, codeEscalation)

	set(DimensionIP, ActionVerifyCode, 10*time.Minute, 20, standardEscalation)
	set(DimensionAccount, ActionVerifyCode, 10*time.Minute, 5, standardEscalation)
	set(DimensionSession, ActionVerifyCode, 10*time.Minute, 5, standardEscalation)

	resendEscalation := Escalation{time.Minute, 5 * time.Minute, 15 * time.Minute}
	set(DimensionIP, ActionResend, 10*time.Minute, 10, resendEscalation)
	set(DimensionAccount, ActionResend, 10*time.Minute, 3, resendEscalation)
	set(DimensionSession, ActionResend, 10*time.Minute, 3, resendEscalation)

	set(DimensionIP, ActionGenericAPI, time.Minute, 300, Escalation{time.Minute, 5 * time.Minute})

	return cfg
}

// DefaultConfig returns the baseline configuration: every security-critical
// action is covered on every dimension and generic-api is throttled per IP.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig tightens the defaults for deployments under active
// attack: halved attempt budgets, longer lockouts, blocking audit delivery.
// A blocked audit send still gives up after BackendTimeout.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.MaxLockout = 6 * time.Hour
	for d := range cfg.Policies {
		for a := range cfg.Policies[d] {
			p := cfg.Policies[d][a]
			if p == nil || !Action(a).SecurityCritical() {
				continue
			}
			p.MaxAttempts = max(1, p.MaxAttempts/2)
			p.Lockout = Escalation{5 * time.Minute, 30 * time.Minute, 2 * time.Hour, 6 * time.Hour}
		}
	}
	cfg.Audit.DropIfFull = false
	cfg.Audit.RecordDenials = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Policies = cfg.Policies.clone()
	out.PermissiveDefault = cfg.PermissiveDefault.Clone()
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration and returns an error wrapping
// [ErrInvalidConfig] on the first problem found. Every security-critical
// action must have a policy on every dimension so that a gap fails at
// startup rather than at request time.
func (c *Config) Validate() error {
	if c.MaxLockout <= 0 {
		return invalidConfig("MaxLockout must be > 0")
	}
	if c.BackendTimeout <= 0 {
		return invalidConfig("BackendTimeout must be > 0")
	}

	for d := 0; d < rate.NumDimensions; d++ {
		dim := Dimension(d)
		for a := 0; a < rate.NumActions; a++ {
			action := Action(a)
			p := c.Policies[d][a]
			if p == nil {
				if action.SecurityCritical() {
					return invalidConfig(fmt.Sprintf("no policy for %s/%s", dim, action))
				}
				continue
			}
			if err := p.Validate(); err != nil {
				return invalidConfig(fmt.Sprintf("policy %s/%s: %v", dim, action, err))
			}
		}
	}

	if err := c.PermissiveDefault.Validate(); err != nil {
		return invalidConfig(fmt.Sprintf("PermissiveDefault: %v", err))
	}

	// Store
	switch c.Store.Backend {
	case StoreMemory:
		if c.Store.MaxEntries <= 0 {
			return invalidConfig("Store MaxEntries must be > 0")
		}
		if c.Store.Shards <= 0 {
			return invalidConfig("Store Shards must be > 0")
		}
		if c.Store.Shards > c.Store.MaxEntries {
			return invalidConfig("Store Shards must be <= MaxEntries")
		}
		if c.Store.SweepInterval < 0 {
			return invalidConfig("Store SweepInterval must be >= 0")
		}
	case StoreRedis:
		if c.Store.RedisPrefix == "" {
			return invalidConfig("Store RedisPrefix must not be empty")
		}
		if c.Store.RedisMaxRetries <= 0 {
			return invalidConfig("Store RedisMaxRetries must be > 0")
		}
	default:
		return invalidConfig("Store Backend must be 'memory' or 'redis'")
	}
	if c.Store.IdleGrace < 0 {
		return invalidConfig("Store IdleGrace must be >= 0")
	}

	// Attempt log
	if c.AttemptLog.Timeout <= 0 {
		return invalidConfig("AttemptLog Timeout must be > 0")
	}
	if c.AttemptLog.PruneInterval < 0 {
		return invalidConfig("AttemptLog PruneInterval must be >= 0")
	}
	if c.AttemptLog.PruneInterval > 0 && c.AttemptLog.Retention < c.longestWindow() {
		return invalidConfig("AttemptLog Retention must cover the longest policy window")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}

func (c *Config) longestWindow() time.Duration {
	longest := c.PermissiveDefault.Window
	for d := range c.Policies {
		for _, p := range c.Policies[d] {
			if p != nil && p.Window > longest {
				longest = p.Window
			}
		}
	}
	return longest
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

// IsInvalidConfig reports whether err came from [Config.Validate].
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
