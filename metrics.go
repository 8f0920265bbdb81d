package pomoAuth

import (
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/pomoAuth/security"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricPasswordUpgraded
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricValidateSuccess
	MetricValidateInvalid
	MetricValidateExpired
	MetricValidateWrongType
	// MetricRevokedToken counts rejections by individual jti revocation.
	MetricRevokedToken
	// MetricRevokedLogoutAll counts rejections by the logout-all cutoff.
	MetricRevokedLogoutAll
	MetricStoreUnavailable
	MetricLogout
	MetricLogoutAll
	MetricOAuthLoginSuccess
	MetricOAuthLoginFailure
	MetricAccountCreated
	MetricAccountDuplicate
	MetricProfileUpdated
	MetricPasswordChanged
	MetricAccountDeleted
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the validate latency
// buckets; one overflow bucket follows.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// counter sits alone on a cache line so hot counters do not contend.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the validate latency
// histogram.
type Metrics struct {
	enabled bool
	latency bool
	values  [metricIDCount]counter
	buckets [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honoring cfg. A disabled Metrics ignores Inc.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricValidateLatency {
		return
	}
	m.values[id].Add(1)
}

// Observe records d under MetricValidateLatency; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	i := sort.Search(len(latencyBounds), func(i int) bool { return d <= latencyBounds[i] })
	m.buckets[i].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.values[id].Load()
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id != MetricValidateLatency {
			s.Counters[id] = m.values[id].Load()
		}
	}
	if m.latency {
		hist := make([]uint64, latencyBucketCount)
		for i := range hist {
			hist[i] = m.buckets[i].Load()
		}
		s.Histograms[MetricValidateLatency] = hist
	}
	return s
}

// validationMetric classifies a Validate outcome. Revocations are split by
// cause so single logouts and logout-all cutoffs are told apart.
func validationMetric(err error) MetricID {
	var revoked *security.RevokedError
	switch {
	case err == nil:
		return MetricValidateSuccess
	case errors.Is(err, ErrTokenExpired):
		return MetricValidateExpired
	case errors.Is(err, ErrWrongTokenType):
		return MetricValidateWrongType
	case errors.As(err, &revoked) && revoked.Cause == security.CauseLogoutAll:
		return MetricRevokedLogoutAll
	case errors.Is(err, ErrTokenRevoked):
		return MetricRevokedToken
	case errors.Is(err, ErrStoreUnavailable):
		return MetricStoreUnavailable
	default:
		return MetricValidateInvalid
	}
}
