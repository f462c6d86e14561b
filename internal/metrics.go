package internal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record results.
const (
	ResultDispatched  = "dispatched"
	ResultFailed      = "failed"
	ResultSameBucket  = "same_bucket"
	ResultNotCreated  = "not_created"
	ResultIneligible  = "ineligible"
	ResultConfigError = "config_error"
	ResultMalformed   = "malformed"
)

// Attempt results.
const (
	AttemptSuccess     = "success"
	AttemptTransport   = "transport_error"
	AttemptBadResponse = "bad_response"
	AttemptAPIError    = "api_error"
)

type Metrics struct {
	records  *prometheus.CounterVec
	attempts *prometheus.CounterVec
	dispatch prometheus.Histogram
}

// NewMetrics registers the counters with reg. A nil reg gives unregistered
// counters, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vodtrigger",
			Name:      "records_total",
			Help:      "Notification records handled, by result.",
		}, []string{"result"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vodtrigger",
			Name:      "dispatch_attempts_total",
			Help:      "Transcode API calls, by result.",
		}, []string{"result"}),
		dispatch: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vodtrigger",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one record, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *Metrics) record(result string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(result).Inc()
}

func (m *Metrics) attempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatch.Observe(d.Seconds())
}
