package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricCheckAllowed, Name: "goguard_check_allowed_total", Help: "Attempts allowed."},
	{ID: goGuard.MetricCheckDenied, Name: "goguard_check_denied_total", Help: "Attempts denied by a window or lock."},
	{ID: goGuard.MetricLockoutCreated, Name: "goguard_lockout_created_total", Help: "Lockouts created."},
	{ID: goGuard.MetricLockedRejected, Name: "goguard_locked_rejected_total", Help: "Attempts rejected by a lock already in force."},
	{ID: goGuard.MetricRiskAdjusted, Name: "goguard_risk_adjusted_total", Help: "Evaluations tightened by a risk score."},
	{ID: goGuard.MetricBackendFailure, Name: "goguard_backend_failure_total", Help: "Store or attempt-log failures (denied)."},
	{ID: goGuard.MetricConfigMissing, Name: "goguard_config_missing_total", Help: "Evaluations without a registered policy."},
	{ID: goGuard.MetricInvalidIdentifier, Name: "goguard_invalid_identifier_total", Help: "Rejected identifiers."},
	{ID: goGuard.MetricSuccessRecorded, Name: "goguard_success_recorded_total", Help: "Successful attempts that cleared counters."},
	{ID: goGuard.MetricAdminReset, Name: "goguard_admin_reset_total", Help: "Administrative resets."},
	{ID: goGuard.MetricAdminUnblock, Name: "goguard_admin_unblock_total", Help: "Administrative unblocks that cleared state."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricCheckLatency, Name: "goguard_check_latency_seconds", Help: "Authoritative check latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "goguard_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
// They mirror the engine's millisecond buckets.
var HistogramUpperBounds = []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1}

var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
