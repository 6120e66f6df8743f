// Package stores provides the counter stores behind the rate evaluator: a
// bounded in-process store and a Redis store for deployments that share one
// counting authority across processes.
//
// # Design
//
// [MemoryStore] splits keys across power-of-two shards by xxhash. Each shard is
// a mutex around an LRU, so Update is one short critical section per key and
// unrelated identifiers rarely contend. Size is bounded per shard; entries
// with an active lock are skipped by capacity eviction and never expire.
// A [Janitor] sweeps idle entries on a cron schedule.
//
// [RedisStore] persists a versioned binary record per key with a TTL. Update
// uses WATCH/MULTI optimistic transactions and retries on contention.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for counter records.
// It does NOT decide allow/deny; the mutator passed to Update does.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package except internal/rate.
//   - Hold a shard lock across more than one entry during Range or Sweep.
package stores
