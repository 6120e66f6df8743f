// Package otel publishes goGuard engine counters through OpenTelemetry.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and a
// gauge per latency bucket. A single callback reads
// [goGuard.Engine.MetricsSnapshot] on each collection cycle. Callers own the
// MeterProvider.
package otel
