package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// Prefix is prepended to every exported series.
const Prefix = "gosession_"

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = Prefix + "audit_dropped_total"

var CounterDefs = []CounterDef{
	counter(goSession.MetricLoginSuccess, "Logins that stored a credential pair."),
	counter(goSession.MetricLoginFailure, "Logins rejected by the server or failed in transport."),
	counter(goSession.MetricRegisterSuccess, "Registrations that ended signed in."),
	counter(goSession.MetricRegisterFailure, "Failed registrations."),
	counter(goSession.MetricRefreshSuccess, "Refresh flights that rotated the pair."),
	counter(goSession.MetricRefreshRejected, "Refresh tokens refused by the server."),
	counter(goSession.MetricRefreshTransient, "Refresh flights that failed without a server verdict."),
	counter(goSession.MetricRefreshShared, "Callers served by a refresh another caller started."),
	counter(goSession.MetricRefreshDiscarded, "Refresh results dropped because the session changed."),
	counter(goSession.MetricSessionInvalidated, "Forced sign-outs."),
	counter(goSession.MetricLogout, "Logouts."),
	counter(goSession.MetricLogoutServerFailure, "Logouts whose server notification failed."),
	counter(goSession.MetricRequestRetried, "Gateway calls resent after a refresh."),
	counter(goSession.MetricRequestFailure, "Gateway calls that returned an error."),
	counter(goSession.MetricStorageFailure, "Credential store failures."),
}

var HistogramDefs = []HistogramDef{
	{
		ID:   goSession.MetricCallLatency,
		Name: Prefix + goSession.MetricCallLatency.Name() + "_seconds",
		Help: "Gateway call latency including any refresh and retry.",
	},
}

// HistogramBounds are the upper bounds in seconds of all but the last
// (+Inf) bucket.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that publish buckets as separate instruments.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

func counter(id goSession.MetricID, help string) CounterDef {
	return CounterDef{ID: id, Name: Prefix + id.Name() + "_total", Help: help}
}

// NormalizeBuckets pads or truncates raw to one slot per bucket.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
