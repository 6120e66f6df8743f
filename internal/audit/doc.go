// Package audit implements async delivery of rate-limit violations to external sinks.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, zap logger, fan-out, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] — one violation: key fields, policy in force, lock end, ordinal, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// violations to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Let a slow, failing, or panicking sink influence an allow/deny decision.
//   - Import goGuard or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
