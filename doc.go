// Package goGuard is an adaptive rate-limiting and brute-force protection
// engine for login, verification-code and API endpoints.
//
// Attempts are counted per [Key] (dimension x action x identifier) over a
// fixed window anchored at the first attempt. Exceeding the window budget
// locks the key for a duration taken from an escalation table indexed by how
// many times the key has been locked before. Several dimensions (IP, account,
// session) can be checked together with [Engine.CheckAll]; the merged result
// is allowed only when every dimension allows it. An external 0-100 risk
// score tightens the budget and lengthens lockouts for a single evaluation.
//
// # Concurrency
//
// The read of the current count, the allow decision and the increment are one
// atomic store update, so N concurrent attempts against a budget of M allow
// exactly M. The in-memory store locks per shard; the Redis store uses
// WATCH/MULTI with retries. Engine methods are safe to call from many
// goroutines after [Builder.Build].
//
// # Failure behavior
//
// Every public check returns a well-formed [Result]. Store, attempt-log and
// configuration failures produce a denied result together with a typed error
// ([ErrBackendUnavailable], [ErrConfigurationMissing], [ErrInvalidIdentifier]).
// [Result.Reason] is for logs; end users should only ever see [UserMessage].
//
// # What this package must NOT do
//
//   - Allow an attempt when a backend call failed or timed out.
//   - Evict a record whose lock is still in force while capacity remains.
//   - Hold a store-wide lock while computing [Engine.Statistics].
package goGuard
