package goGuard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/internal/stores"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the counter store contract. Update must be one atomic
// read-modify-write; see the memory and Redis implementations.
type Store = rate.Store

// Record is the per-key counter state owned by a [Store].
type Record = rate.Record

// Mutator computes the next record inside [Store.Update].
type Mutator = rate.Mutator

// AttemptLog is the durable attempt history consulted when a key is not in
// the counter store, so counts survive a restart.
type AttemptLog = rate.AttemptLog

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  Store

	attemptLog AttemptLog
	auditSink  AuditSink
	logger     *zap.Logger
	clock      func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithPolicy registers p for dim and action on top of the current config.
func (b *Builder) WithPolicy(dim Dimension, action Action, p Policy) *Builder {
	b.config.Policies.Set(dim, action, p)
	return b
}

// WithRedis selects the Redis counter store backed by client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	b.config.Store.Backend = StoreRedis
	return b
}

// WithStore installs a custom counter store. It takes precedence over the
// configured backend.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithAttemptLog enables the durable attempt history. The caller keeps
// ownership of log and closes it after the Engine.
func (b *Builder) WithAttemptLog(log AttemptLog) *Builder {
	b.attemptLog = log
	return b
}

// WithAuditSink sets where violation events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for every time decision. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the engine's background work.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	capLockouts(&cfg)

	if b.store == nil && cfg.Store.Backend == StoreRedis && b.redis == nil {
		return nil, fmt.Errorf("%w: redis store requires a redis client", ErrInvalidConfig)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:  cfg,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}

	// -------- COUNTER STORE --------
	switch {
	case b.store != nil:
		e.store = b.store
	case cfg.Store.Backend == StoreRedis:
		e.store = stores.NewRedisStore(b.redis, stores.RedisConfig{
			Prefix:     cfg.Store.RedisPrefix,
			IdleGrace:  cfg.Store.IdleGrace,
			MaxRetries: cfg.Store.RedisMaxRetries,
			Clock:      now,
		})
	default:
		mem, err := stores.NewMemoryStore(stores.MemoryConfig{
			MaxEntries:    cfg.Store.MaxEntries,
			Shards:        cfg.Store.Shards,
			IdleGrace:     cfg.Store.IdleGrace,
			SweepInterval: cfg.Store.SweepInterval,
			Clock:         now,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		e.memory = mem
		e.store = mem
	}

	// -------- EVALUATOR --------
	opts := []rate.Option{rate.WithClock(now)}
	if b.attemptLog != nil {
		opts = append(opts, rate.WithAttemptLog(b.attemptLog, cfg.AttemptLog.Timeout))

		if p, ok := b.attemptLog.(attemptPruner); ok && cfg.AttemptLog.PruneInterval > 0 {
			j, err := stores.StartJanitor(&logPruner{
				log:       p,
				retention: cfg.AttemptLog.Retention,
				timeout:   cfg.AttemptLog.Timeout,
				now:       now,
				logger:    logger,
			}, cfg.AttemptLog.PruneInterval)
			if err != nil {
				e.Close()
				return nil, err
			}
			e.pruner = j
		}
	}
	e.evaluator = rate.NewEvaluator(e.store, opts...)

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = audit.NewZapSink(logger)
	}
	// A stalled sink must not hold a request longer than a store call.
	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SendTimeout: cfg.BackendTimeout,
	}, sink)

	b.built = true
	return e, nil
}

// capLockouts clamps every escalation step to MaxLockout so request-time
// code never sees an uncapped table.
func capLockouts(cfg *Config) {
	for d := range cfg.Policies {
		for a := range cfg.Policies[d] {
			if p := cfg.Policies[d][a]; p != nil {
				p.Lockout = p.Lockout.Capped(cfg.MaxLockout)
			}
		}
	}
	cfg.PermissiveDefault.Lockout = cfg.PermissiveDefault.Lockout.Capped(cfg.MaxLockout)
}
