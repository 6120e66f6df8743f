package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix     = "gg"
	defaultRedisMaxRetries = 100
	scanBatch              = 256
)

var (
	ErrRedisUnavailable = errors.New("counter redis unavailable")
	ErrRedisContention  = errors.New("counter redis contention")
)

// RedisConfig tunes a [RedisStore].
type RedisConfig struct {
	Prefix     string
	IdleGrace  time.Duration
	MaxRetries int
	Clock      func() time.Time
}

// RedisStore keeps one binary-encoded record per key and applies updates
// with WATCH/MULTI, retrying on contention.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	grace      time.Duration
	maxRetries int
	now        func() time.Time
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = defaultIdleGrace
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRedisMaxRetries
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &RedisStore{
		redis:      client,
		prefix:     cfg.Prefix,
		grace:      cfg.IdleGrace,
		maxRetries: cfg.MaxRetries,
		now:        cfg.Clock,
	}
}

func (s *RedisStore) key(k rate.Key) string {
	return s.prefix + ":" + k.String()
}

func (s *RedisStore) Get(ctx context.Context, key rate.Key) (rate.Record, bool, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rate.Record{}, false, nil
		}
		return rate.Record{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return rate.Record{}, false, err
	}
	if s.expiredAt(rec, s.now()) {
		return rate.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisStore) Update(ctx context.Context, key rate.Key, fn rate.Mutator) (rate.Record, error) {
	k := s.key(key)

	for i := 0; i < s.maxRetries; i++ {
		var stored rate.Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			now := s.now()

			var (
				cur   rate.Record
				found bool
			)
			data, err := tx.Get(ctx, k).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				cur, err = decodeRecord(data)
				if err != nil {
					return err
				}
				found = !s.expiredAt(cur, now)
				if !found {
					cur = rate.Record{}
				}
			}

			next, keep := fn(cur, found)
			if !keep {
				stored = rate.Record{}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, k)
					return nil
				})
				return err
			}

			encoded, err := encodeRecord(next)
			if err != nil {
				return err
			}
			ttl := next.ExpiresAt().Add(s.grace).Sub(now)
			if ttl < time.Second {
				ttl = time.Second
			}

			stored = next
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, encoded, ttl)
				return nil
			})
			return err
		}, k)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return rate.Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return stored, nil
	}

	return rate.Record{}, ErrRedisContention
}

func (s *RedisStore) Delete(ctx context.Context, key rate.Key) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	total := 0
	err := s.scan(ctx, func(keys []string) error {
		total += len(keys)
		return nil
	})
	return total, err
}

// Range walks the keyspace with SCAN; entries written during the walk may or
// may not be seen.
func (s *RedisStore) Range(ctx context.Context, fn func(rate.Key, rate.Record) bool) error {
	errStop := errors.New("stop")
	prefix := s.prefix + ":"

	err := s.scan(ctx, func(keys []string) error {
		values, err := s.redis.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		now := s.now()
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			rec, err := decodeRecord([]byte(raw))
			if err != nil || s.expiredAt(rec, now) {
				continue
			}
			key, err := rate.ParseKey(strings.TrimPrefix(keys[i], prefix))
			if err != nil {
				continue
			}
			if !fn(key, rec) {
				return errStop
			}
		}
		return nil
	})
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func (s *RedisStore) scan(ctx context.Context, fn func([]string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) expiredAt(rec rate.Record, now time.Time) bool {
	if rec.Locked(now) {
		return false
	}
	return now.After(rec.ExpiresAt().Add(s.grace))
}
