package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/attemptlog"
	"github.com/MrEthical07/goGuard/jwt"
)

// miniRedisAddr selects an embedded miniredis instead of a real server.
const miniRedisAddr = "mini"

// backends owns every external resource an engine was built on.
type backends struct {
	redis  redis.UniversalClient
	mini   *miniredis.Miniredis
	log    *attemptlog.SQLLog
	closed bool
}

func (b *backends) Close() {
	if b == nil || b.closed {
		return
	}
	b.closed = true
	if b.log != nil {
		_ = b.log.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.mini != nil {
		b.mini.Close()
	}
}

// buildEngine opens the configured backends and builds an engine on them.
// The caller closes the engine before the backends.
func buildEngine(ctx context.Context, cfg goGuard.Config, logger *zap.Logger) (*goGuard.Engine, *backends, error) {
	b := &backends{}
	builder := goGuard.New().WithConfig(cfg).WithLogger(logger)

	if addr := strings.TrimSpace(viper.GetString("redis.addr")); addr != "" || cfg.Store.Backend == goGuard.StoreRedis {
		client, err := b.openRedis(ctx, addr, logger)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		builder.WithRedis(client)
	}

	if dialect := viper.GetString("attempt_log.dialect"); dialect != "" {
		log, err := attemptlog.Open(ctx, dialect, viper.GetString("attempt_log.dsn"))
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		b.log = log
		builder.WithAttemptLog(log)
		logger.Info("attempt log enabled", zap.String("dialect", dialect))
	}

	engine, err := builder.Build()
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return engine, b, nil
}

func (b *backends) openRedis(ctx context.Context, addr string, logger *zap.Logger) (redis.UniversalClient, error) {
	if addr == "" || addr == miniRedisAddr {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.mini = mr
		addr = mr.Addr()
		logger.Warn("using embedded miniredis; counters are not shared across processes", zap.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	b.redis = client

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	logger.Info("using redis counter store", zap.String("addr", addr))
	return client, nil
}

// tokenManager returns the admin token manager, or nil when no secret is
// configured.
func tokenManager() (*jwt.Manager, error) {
	secret := viper.GetString("admin.secret")
	if secret == "" {
		return nil, nil
	}
	return jwt.NewManager(jwt.Config{
		TokenTTL:      viper.GetDuration("admin.token_ttl"),
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(secret),
		Issuer:        viper.GetString("admin.issuer"),
	})
}
