// Package prometheus exposes goGuard engine counters as a
// prometheus.Collector.
//
// Counter names are goguard_*_total; the latency histogram is
// goguard_check_latency_seconds. Register the [Collector] on your own
// registry or mount [Handler]; nothing is registered globally.
package prometheus
