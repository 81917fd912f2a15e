package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in [Metrics].
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that stored a pair.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the server or failed in transport.
	MetricLoginFailure
	// MetricRegisterSuccess counts registrations that ended signed in.
	MetricRegisterSuccess
	// MetricRegisterFailure counts failed registrations.
	MetricRegisterFailure
	// MetricRefreshSuccess counts refresh flights that rotated the pair.
	MetricRefreshSuccess
	// MetricRefreshRejected counts refresh tokens refused by the server.
	MetricRefreshRejected
	// MetricRefreshTransient counts refresh flights that failed without a verdict.
	MetricRefreshTransient
	// MetricRefreshShared counts callers served by another caller's flight.
	MetricRefreshShared
	// MetricRefreshDiscarded counts refresh results dropped because the session changed meanwhile.
	MetricRefreshDiscarded
	// MetricSessionInvalidated counts forced sign-outs.
	MetricSessionInvalidated
	// MetricLogout counts logouts.
	MetricLogout
	// MetricLogoutServerFailure counts logouts whose server notification failed.
	MetricLogoutServerFailure
	// MetricRequestRetried counts gateway calls resent after a refresh.
	MetricRequestRetried
	// MetricRequestFailure counts gateway calls that returned an error.
	MetricRequestFailure
	// MetricStorageFailure counts credential store failures.
	MetricStorageFailure
	// MetricCallLatency is the gateway call latency histogram, including any refresh and retry.
	MetricCallLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters and one latency histogram. A nil or
// disabled *Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram of id. Only histogram metrics
// accept observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, the histogram
// buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCallLatency].buckets[i])
		}
		s.Histograms[MetricCallLatency] = buckets
	}

	return s
}

func isHistogram(id MetricID) bool {
	return id == MetricCallLatency
}

// Name returns the snake_case name used by exporters.
func (id MetricID) Name() string {
	if int(id) < len(metricNames) {
		return metricNames[id]
	}
	return "unknown"
}

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:        "login_success",
	MetricLoginFailure:        "login_failure",
	MetricRegisterSuccess:     "register_success",
	MetricRegisterFailure:     "register_failure",
	MetricRefreshSuccess:      "refresh_success",
	MetricRefreshRejected:     "refresh_rejected",
	MetricRefreshTransient:    "refresh_transient_failure",
	MetricRefreshShared:       "refresh_shared",
	MetricRefreshDiscarded:    "refresh_discarded",
	MetricSessionInvalidated:  "session_invalidated",
	MetricLogout:              "logout",
	MetricLogoutServerFailure: "logout_server_failure",
	MetricRequestRetried:      "request_retried",
	MetricRequestFailure:      "request_failure",
	MetricStorageFailure:      "storage_failure",
	MetricCallLatency:         "call_latency",
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
