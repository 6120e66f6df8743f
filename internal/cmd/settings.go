package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	goGuard "github.com/MrEthical07/goGuard"
)

// policySetting is one entry of the "policies" list in the config file.
type policySetting struct {
	Dimension   string   `mapstructure:"dimension" yaml:"dimension"`
	Action      string   `mapstructure:"action" yaml:"action"`
	Window      string   `mapstructure:"window" yaml:"window"`
	MaxAttempts int      `mapstructure:"max_attempts" yaml:"max_attempts"`
	Lockout     []string `mapstructure:"lockout" yaml:"lockout"`
}

// engineConfig builds the engine configuration from the selected profile and
// every override viper knows about.
func engineConfig() (goGuard.Config, error) {
	var cfg goGuard.Config
	switch profile := viper.GetString("profile"); profile {
	case "", "default":
		cfg = goGuard.DefaultConfig()
	case "high-security":
		cfg = goGuard.HighSecurityConfig()
	default:
		return cfg, fmt.Errorf("unknown profile %q (want default or high-security)", profile)
	}

	durations := map[string]*time.Duration{
		"backend_timeout":            &cfg.BackendTimeout,
		"max_lockout":                &cfg.MaxLockout,
		"store.idle_grace":           &cfg.Store.IdleGrace,
		"store.sweep_interval":       &cfg.Store.SweepInterval,
		"attempt_log.timeout":        &cfg.AttemptLog.Timeout,
		"attempt_log.prune_interval": &cfg.AttemptLog.PruneInterval,
		"attempt_log.retention":      &cfg.AttemptLog.Retention,
	}
	for key, dst := range durations {
		if viper.IsSet(key) {
			*dst = viper.GetDuration(key)
		}
	}

	ints := map[string]*int{
		"store.max_entries":       &cfg.Store.MaxEntries,
		"store.shards":            &cfg.Store.Shards,
		"store.redis_max_retries": &cfg.Store.RedisMaxRetries,
		"audit.buffer_size":       &cfg.Audit.BufferSize,
	}
	for key, dst := range ints {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}

	bools := map[string]*bool{
		"audit.enabled":              &cfg.Audit.Enabled,
		"audit.drop_if_full":         &cfg.Audit.DropIfFull,
		"audit.record_denials":       &cfg.Audit.RecordDenials,
		"metrics.enabled":            &cfg.Metrics.Enabled,
		"metrics.latency_histograms": &cfg.Metrics.EnableLatencyHistograms,
	}
	for key, dst := range bools {
		if viper.IsSet(key) {
			*dst = viper.GetBool(key)
		}
	}

	if viper.IsSet("store.backend") {
		cfg.Store.Backend = goGuard.StoreBackend(viper.GetString("store.backend"))
	}
	if viper.IsSet("store.redis_prefix") {
		cfg.Store.RedisPrefix = viper.GetString("store.redis_prefix")
	}

	var policies []policySetting
	if err := viper.UnmarshalKey("policies", &policies); err != nil {
		return cfg, fmt.Errorf("decode policies: %w", err)
	}
	for i, ps := range policies {
		dim, action, p, err := ps.resolve()
		if err != nil {
			return cfg, fmt.Errorf("policies[%d]: %w", i, err)
		}
		cfg.Policies.Set(dim, action, p)
	}

	return cfg, cfg.Validate()
}

func (ps policySetting) resolve() (goGuard.Dimension, goGuard.Action, goGuard.Policy, error) {
	dim, err := goGuard.ParseDimension(ps.Dimension)
	if err != nil {
		return 0, 0, goGuard.Policy{}, err
	}
	action, err := goGuard.ParseAction(ps.Action)
	if err != nil {
		return 0, 0, goGuard.Policy{}, err
	}
	window, err := time.ParseDuration(ps.Window)
	if err != nil {
		return 0, 0, goGuard.Policy{}, fmt.Errorf("window: %w", err)
	}
	lockout := make(goGuard.Escalation, 0, len(ps.Lockout))
	for _, raw := range ps.Lockout {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, 0, goGuard.Policy{}, fmt.Errorf("lockout: %w", err)
		}
		lockout = append(lockout, d)
	}
	return dim, action, goGuard.Policy{Window: window, MaxAttempts: ps.MaxAttempts, Lockout: lockout}, nil
}

// configView is the YAML rendering of an effective configuration. It reads
// back through engineConfig unchanged.
type configView struct {
	BackendTimeout string          `yaml:"backend_timeout"`
	MaxLockout     string          `yaml:"max_lockout"`
	Store          storeView       `yaml:"store"`
	AttemptLog     attemptLogView  `yaml:"attempt_log"`
	Audit          auditView       `yaml:"audit"`
	Metrics        metricsView     `yaml:"metrics"`
	Policies       []policySetting `yaml:"policies"`
}

type storeView struct {
	Backend         string `yaml:"backend"`
	MaxEntries      int    `yaml:"max_entries"`
	Shards          int    `yaml:"shards"`
	IdleGrace       string `yaml:"idle_grace"`
	SweepInterval   string `yaml:"sweep_interval"`
	RedisPrefix     string `yaml:"redis_prefix"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
}

type attemptLogView struct {
	Timeout       string `yaml:"timeout"`
	PruneInterval string `yaml:"prune_interval"`
	Retention     string `yaml:"retention"`
}

type auditView struct {
	Enabled       bool `yaml:"enabled"`
	BufferSize    int  `yaml:"buffer_size"`
	DropIfFull    bool `yaml:"drop_if_full"`
	RecordDenials bool `yaml:"record_denials"`
}

type metricsView struct {
	Enabled           bool `yaml:"enabled"`
	LatencyHistograms bool `yaml:"latency_histograms"`
}

func viewOf(cfg goGuard.Config) configView {
	v := configView{
		BackendTimeout: cfg.BackendTimeout.String(),
		MaxLockout:     cfg.MaxLockout.String(),
		Store: storeView{
			Backend:         string(cfg.Store.Backend),
			MaxEntries:      cfg.Store.MaxEntries,
			Shards:          cfg.Store.Shards,
			IdleGrace:       cfg.Store.IdleGrace.String(),
			SweepInterval:   cfg.Store.SweepInterval.String(),
			RedisPrefix:     cfg.Store.RedisPrefix,
			RedisMaxRetries: cfg.Store.RedisMaxRetries,
		},
		AttemptLog: attemptLogView{
			Timeout:       cfg.AttemptLog.Timeout.String(),
			PruneInterval: cfg.AttemptLog.PruneInterval.String(),
			Retention:     cfg.AttemptLog.Retention.String(),
		},
		Audit: auditView{
			Enabled:       cfg.Audit.Enabled,
			BufferSize:    cfg.Audit.BufferSize,
			DropIfFull:    cfg.Audit.DropIfFull,
			RecordDenials: cfg.Audit.RecordDenials,
		},
		Metrics: metricsView{
			Enabled:           cfg.Metrics.Enabled,
			LatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		},
	}

	for d := range cfg.Policies {
		for a := range cfg.Policies[d] {
			p, ok := cfg.Policies.Get(goGuard.Dimension(d), goGuard.Action(a))
			if !ok {
				continue
			}
			lockout := make([]string, len(p.Lockout))
			for i, step := range p.Lockout {
				lockout[i] = step.String()
			}
			v.Policies = append(v.Policies, policySetting{
				Dimension:   goGuard.Dimension(d).String(),
				Action:      goGuard.Action(a).String(),
				Window:      p.Window.String(),
				MaxAttempts: p.MaxAttempts,
				Lockout:     lockout,
			})
		}
	}
	return v
}
