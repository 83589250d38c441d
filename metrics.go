package goShield

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful authentications.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed authentications.
	MetricLoginFailure
	// MetricLoginThrottled counts authentications refused by the attempt limiter.
	MetricLoginThrottled
	// MetricLogout counts SecurityManager logouts.
	MetricLogout
	// MetricSessionStarted counts sessions created by the session manager.
	MetricSessionStarted
	// MetricSessionStopped counts explicit session stops.
	MetricSessionStopped
	// MetricSessionExpired counts sessions reclaimed after expiring.
	MetricSessionExpired
	// MetricSessionReaped counts sessions reclaimed by reaper sweeps.
	MetricSessionReaped
	// MetricAuthzGranted counts granted authorization decisions.
	MetricAuthzGranted
	// MetricAuthzDenied counts denied authorization decisions.
	MetricAuthzDenied
	// MetricAuthzError counts decisions aborted by a realm or module error.
	MetricAuthzError
	// MetricEventSendFailure counts event sink failures.
	MetricEventSendFailure
	// MetricCacheHit counts realm cache hits.
	MetricCacheHit
	// MetricCacheMiss counts realm cache misses.
	MetricCacheMiss
	// MetricCacheError counts realm cache backend failures.
	MetricCacheError
	// MetricDecisionLatency is the authorization decision latency histogram.
	MetricDecisionLatency
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

// Metrics holds atomic counters and an optional decision latency histogram.
// A nil or disabled Metrics ignores every write.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics configured by cfg.
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

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram id. Only MetricDecisionLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricDecisionLatency {
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

// Snapshot copies every counter, and the latency histogram when enabled.
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
		if id == MetricDecisionLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricDecisionLatency].buckets[i])
		}
		s.Histograms[MetricDecisionLatency] = buckets
	}

	return s
}

// bucketIndex maps d onto the bounds 100µs, 250µs, 500µs, 1ms, 2.5ms, 5ms,
// 10ms, +Inf.
func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 100:
		return 0
	case us <= 250:
		return 1
	case us <= 500:
		return 2
	case us <= 1000:
		return 3
	case us <= 2500:
		return 4
	case us <= 5000:
		return 5
	case us <= 10000:
		return 6
	default:
		return 7
	}
}
