// Package rate implements the attempt-counting core of goGuard: the key and
// policy model, the escalation table, the risk adjuster, and the window
// evaluator that turns one attempt into one atomic store update.
//
// # Window semantics
//
// A record counts attempts inside a window that starts at the first attempt.
// When the count passes MaxAttempts the record locks for the escalation
// duration of its violation ordinal, and the window is re-anchored at the end
// of the lock. A lock always wins over window expiry: the window never rolls
// while now < LockedUntil.
//
// # Architecture boundaries
//
// Storage is behind [Store]. Every decision that reads a count and writes a
// count happens inside a single [Store.Update] call, so concurrent callers can
// never all observe "count < limit" before any of them increments.
//
// # What this package must NOT do
//
//   - Split "check" and "record" into two store calls on the authoritative path.
//   - Log, emit audit events, or resolve policies (the Engine does that).
//   - Be imported outside the goGuard module.
package rate
