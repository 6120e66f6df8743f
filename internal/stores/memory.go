package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/simplelru"
)

const (
	defaultMaxEntries = 100_000
	defaultShards     = 64
	defaultIdleGrace  = 5 * time.Minute

	// hardCeilingFactor bounds a shard even when every entry in it is locked.
	hardCeilingFactor = 2
)

// ErrStoreClosed is returned by a closed MemoryStore.
var ErrStoreClosed = errors.New("store closed")

// MemoryConfig tunes a [MemoryStore].
type MemoryConfig struct {
	// MaxEntries bounds the whole store. Split evenly across shards.
	MaxEntries int
	// Shards is rounded up to a power of two.
	Shards int
	// IdleGrace is added to a record's expiry before it may be purged.
	IdleGrace time.Duration
	// SweepInterval schedules the background janitor. Zero disables it.
	SweepInterval time.Duration
	Clock         func() time.Time
}

type memoryShard struct {
	mu       sync.Mutex
	lru      *simplelru.LRU
	capacity int
}

// MemoryStore is the in-process counter store: a fixed set of mutex-guarded
// LRU shards, so unrelated keys rarely contend and total size stays bounded
// under adversarial key fan-out.
type MemoryStore struct {
	shards    []*memoryShard
	mask      uint64
	grace     time.Duration
	now       func() time.Time
	janitor   *Janitor
	closed    atomic.Bool
	evicted   atomic.Uint64
	expired   atomic.Uint64
	closeOnce sync.Once
}

// NewMemoryStore creates a memory store and starts its janitor when configured.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	if cfg.IdleGrace < 0 {
		return nil, fmt.Errorf("idle grace must be >= 0")
	}
	if cfg.IdleGrace == 0 {
		cfg.IdleGrace = defaultIdleGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	n := 1
	for n < cfg.Shards {
		n <<= 1
	}
	perShard := cfg.MaxEntries / n
	if perShard < 1 {
		perShard = 1
	}

	s := &MemoryStore{
		shards: make([]*memoryShard, n),
		mask:   uint64(n - 1),
		grace:  cfg.IdleGrace,
		now:    cfg.Clock,
	}
	for i := range s.shards {
		lru, err := simplelru.NewLRU(perShard*hardCeilingFactor, nil)
		if err != nil {
			return nil, fmt.Errorf("create shard %d: %w", i, err)
		}
		s.shards[i] = &memoryShard{lru: lru, capacity: perShard}
	}

	if cfg.SweepInterval > 0 {
		janitor, err := StartJanitor(s, cfg.SweepInterval)
		if err != nil {
			return nil, err
		}
		s.janitor = janitor
	}

	return s, nil
}

// Get returns the record for key. It does not change LRU order.
func (s *MemoryStore) Get(ctx context.Context, key rate.Key) (rate.Record, bool, error) {
	if err := s.usable(ctx); err != nil {
		return rate.Record{}, false, err
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	v, ok := sh.lru.Peek(key)
	sh.mu.Unlock()
	if !ok {
		return rate.Record{}, false, nil
	}

	rec := v.(rate.Record)
	if s.expiredAt(rec, s.now()) {
		return rate.Record{}, false, nil
	}
	return rec, true, nil
}

// Update applies fn to the current record inside the shard lock.
func (s *MemoryStore) Update(ctx context.Context, key rate.Key, fn rate.Mutator) (rate.Record, error) {
	if err := s.usable(ctx); err != nil {
		return rate.Record{}, err
	}

	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	var (
		cur   rate.Record
		found bool
	)
	if v, ok := sh.lru.Peek(key); ok {
		cur = v.(rate.Record)
		if s.expiredAt(cur, now) {
			sh.lru.Remove(key)
			s.expired.Add(1)
			cur = rate.Record{}
		} else {
			found = true
		}
	}

	next, keep := fn(cur, found)
	if !keep {
		if found {
			sh.lru.Remove(key)
		}
		return rate.Record{}, nil
	}

	if sh.lru.Add(key, next) {
		s.evicted.Add(1)
	}
	s.enforceCapacity(sh, key, now)
	return next, nil
}

// Delete removes key and reports whether a live record existed.
func (s *MemoryStore) Delete(ctx context.Context, key rate.Key) (bool, error) {
	if err := s.usable(ctx); err != nil {
		return false, err
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.lru.Peek(key)
	if !ok {
		return false, nil
	}
	sh.lru.Remove(key)
	return !s.expiredAt(v.(rate.Record), s.now()), nil
}

// Len counts entries shard by shard, including ones not yet swept.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.lru.Len()
		sh.mu.Unlock()
	}
	return total, nil
}

// Range snapshots each shard's keys, then reads each entry under its own
// short critical section. Writers never wait for the whole iteration.
func (s *MemoryStore) Range(ctx context.Context, fn func(rate.Key, rate.Record) bool) error {
	if err := s.usable(ctx); err != nil {
		return err
	}

	for _, sh := range s.shards {
		sh.mu.Lock()
		keys := sh.lru.Keys()
		sh.mu.Unlock()

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}

			sh.mu.Lock()
			v, ok := sh.lru.Peek(k)
			sh.mu.Unlock()
			if !ok {
				continue
			}

			rec := v.(rate.Record)
			if s.expiredAt(rec, s.now()) {
				continue
			}
			if !fn(k.(rate.Key), rec) {
				return nil
			}
		}
	}
	return nil
}

// Sweep purges expired entries one entry-lock at a time and returns how many
// were removed.
func (s *MemoryStore) Sweep() int {
	if s.closed.Load() {
		return 0
	}

	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		keys := sh.lru.Keys()
		sh.mu.Unlock()

		for _, k := range keys {
			sh.mu.Lock()
			if v, ok := sh.lru.Peek(k); ok && s.expiredAt(v.(rate.Record), s.now()) {
				sh.lru.Remove(k)
				removed++
			}
			sh.mu.Unlock()
		}
	}

	s.expired.Add(uint64(removed))
	return removed
}

// Evicted returns how many live entries were dropped for capacity.
func (s *MemoryStore) Evicted() uint64 {
	return s.evicted.Load()
}

// Expired returns how many idle entries were purged.
func (s *MemoryStore) Expired() uint64 {
	return s.expired.Load()
}

// Close stops the janitor. Later calls fail with [ErrStoreClosed].
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.janitor != nil {
			s.janitor.Stop()
		}
	})
	return nil
}

func (s *MemoryStore) usable(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return ctx.Err()
}

func (s *MemoryStore) shardFor(key rate.Key) *memoryShard {
	h := xxhash.Sum64String(key.Identifier)
	h ^= uint64(key.Dimension)<<56 | uint64(key.Action)<<48
	h *= 0x9E3779B97F4A7C15
	return s.shards[(h>>32)&s.mask]
}

func (s *MemoryStore) expiredAt(rec rate.Record, now time.Time) bool {
	if rec.Locked(now) {
		return false
	}
	return now.After(rec.ExpiresAt().Add(s.grace))
}

// enforceCapacity trims the shard back to capacity, oldest first. Entries with
// an active lock and the entry just written are moved to the front instead of
// evicted; the LRU's own hard ceiling still applies if everything is locked.
func (s *MemoryStore) enforceCapacity(sh *memoryShard, written rate.Key, now time.Time) {
	for budget := sh.lru.Len(); sh.lru.Len() > sh.capacity && budget > 0; budget-- {
		k, v, ok := sh.lru.GetOldest()
		if !ok {
			return
		}
		if k.(rate.Key) == written || v.(rate.Record).Locked(now) {
			sh.lru.Get(k)
			continue
		}
		sh.lru.Remove(k)
		s.evicted.Add(1)
	}
}
