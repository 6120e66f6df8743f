package goGuard

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "default valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "max lockout zero",
			mutate: func(c *Config) {
				c.MaxLockout = 0
			},
			wantValid: false,
		},
		{
			name: "backend timeout zero",
			mutate: func(c *Config) {
				c.BackendTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "security critical gap",
			mutate: func(c *Config) {
				c.Policies.Remove(DimensionSession, ActionResend)
			},
			wantValid: false,
		},
		{
			name: "generic api gap allowed",
			mutate: func(c *Config) {
				c.Policies.Remove(DimensionIP, ActionGenericAPI)
			},
			wantValid: true,
		},
		{
			name: "zero attempts",
			mutate: func(c *Config) {
				c.Policies.Set(DimensionIP, ActionLogin, Policy{Window: time.Minute, MaxAttempts: 0, Lockout: Escalation{time.Minute}})
			},
			wantValid: false,
		},
		{
			name: "empty escalation",
			mutate: func(c *Config) {
				c.Policies.Set(DimensionIP, ActionLogin, Policy{Window: time.Minute, MaxAttempts: 5})
			},
			wantValid: false,
		},
		{
			name: "decreasing escalation",
			mutate: func(c *Config) {
				c.Policies.Set(DimensionIP, ActionLogin, Policy{Window: time.Minute, MaxAttempts: 5, Lockout: Escalation{time.Hour, time.Minute}})
			},
			wantValid: false,
		},
		{
			name: "bad permissive default",
			mutate: func(c *Config) {
				c.PermissiveDefault.Window = 0
			},
			wantValid: false,
		},
		{
			name: "unknown backend",
			mutate: func(c *Config) {
				c.Store.Backend = "etcd"
			},
			wantValid: false,
		},
		{
			name: "more shards than entries",
			mutate: func(c *Config) {
				c.Store.MaxEntries = 8
				c.Store.Shards = 16
			},
			wantValid: false,
		},
		{
			name: "redis without prefix",
			mutate: func(c *Config) {
				c.Store.Backend = StoreRedis
				c.Store.RedisPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "redis valid",
			mutate: func(c *Config) {
				c.Store.Backend = StoreRedis
			},
			wantValid: true,
		},
		{
			name: "negative idle grace",
			mutate: func(c *Config) {
				c.Store.IdleGrace = -time.Second
			},
			wantValid: false,
		},
		{
			name: "retention shorter than window",
			mutate: func(c *Config) {
				c.AttemptLog.Retention = 30 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "retention ignored without pruning",
			mutate: func(c *Config) {
				c.AttemptLog.PruneInterval = 0
				c.AttemptLog.Retention = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit disabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !IsInvalidConfig(err) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestHighSecurityConfigValid(t *testing.T) {
	cfg := HighSecurityConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("HighSecurityConfig must validate: %v", err)
	}

	def := DefaultConfig()
	got, _ := cfg.Policies.Get(DimensionAccount, ActionLogin)
	base, _ := def.Policies.Get(DimensionAccount, ActionLogin)
	if got.MaxAttempts >= base.MaxAttempts {
		t.Fatalf("expected tighter budget, got %d vs %d", got.MaxAttempts, base.MaxAttempts)
	}
	if cfg.Audit.DropIfFull {
		t.Fatal("high security audit must not drop events")
	}
}

func TestConfigCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cp := cloneConfig(cfg)

	cp.Policies[DimensionIP][ActionLogin].MaxAttempts = 1
	cp.Policies[DimensionIP][ActionLogin].Lockout[0] = time.Nanosecond

	orig, _ := cfg.Policies.Get(DimensionIP, ActionLogin)
	if orig.MaxAttempts == 1 || orig.Lockout[0] == time.Nanosecond {
		t.Fatal("clone shares policy state with the original")
	}
}

func TestBuildCapsLockouts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLockout = 3 * time.Minute
	cfg.Policies.Set(DimensionAccount, ActionLogin, Policy{
		Window:      time.Minute,
		MaxAttempts: 3,
		Lockout:     Escalation{time.Minute, 5 * time.Minute, time.Hour},
	})

	e, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()

	p, ok := e.Config().Policies.Get(DimensionAccount, ActionLogin)
	if !ok {
		t.Fatal("policy missing after Build")
	}
	want := Escalation{time.Minute, 3 * time.Minute, 3 * time.Minute}
	for i := range want {
		if p.Lockout[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], p.Lockout[i])
		}
	}

	orig, _ := cfg.Policies.Get(DimensionAccount, ActionLogin)
	if orig.Lockout[2] != time.Hour {
		t.Fatal("Build must not mutate the caller's config")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policies.Remove(DimensionAccount, ActionLogin)

	_, err := New().WithConfig(cfg).Build()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPolicyTableIgnoresUnknownEnums(t *testing.T) {
	var table PolicyTable
	table.Set(Dimension(9), ActionLogin, Policy{Window: time.Minute, MaxAttempts: 1, Lockout: Escalation{time.Minute}})

	if _, ok := table.Get(Dimension(9), ActionLogin); ok {
		t.Fatal("unknown dimension must not resolve")
	}
}
