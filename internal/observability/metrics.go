// Package observability provides Prometheus metrics for monitoring the
// verification engine. Metrics are a write-only side channel; nothing in
// the core reads them back.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the Prometheus metrics for the verification engine.
type Metrics struct {
	registry *prometheus.Registry

	checksTotal         *prometheus.CounterVec
	vendorRequestsTotal *prometheus.CounterVec
	batchDuration       prometheus.Histogram
	breakerStateGauge   prometheus.Gauge
	queueDepthGauge     prometheus.Gauge
}

// NewMetrics creates and registers the engine metrics on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetlink_checks_total",
		Help: "Ground-truth verification checks by outcome",
	}, []string{"outcome"})

	m.vendorRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetlink_vendor_requests_total",
		Help: "Vendor schedule fetches by provider and result",
	}, []string{"vendor", "result"})

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleetlink_batch_duration_seconds",
		Help:    "Wall-clock duration of one verification batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.breakerStateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetlink_breaker_open",
		Help: "1 when the circuit breaker is open, 0 otherwise",
	})

	m.queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetlink_verification_queue_depth",
		Help: "Aircraft currently eligible for a verification check",
	})

	for _, c := range []prometheus.Collector{
		m.checksTotal,
		m.vendorRequestsTotal,
		m.batchDuration,
		m.breakerStateGauge,
		m.queueDepthGauge,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the private registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCheck counts one completed check by outcome
// (confirmed, negative, error, mismatch, no_flights).
func (m *Metrics) RecordCheck(outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
}

// RecordVendorRequest counts one vendor fetch by result (ok, empty, error).
func (m *Metrics) RecordVendorRequest(vendor, result string) {
	if m == nil {
		return
	}
	m.vendorRequestsTotal.WithLabelValues(vendor, result).Inc()
}

// ObserveBatchDuration records one batch's wall-clock duration in seconds.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(seconds)
}

// SetBreakerOpen records the breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.breakerStateGauge.Set(1)
	} else {
		m.breakerStateGauge.Set(0)
	}
}

// SetQueueDepth records how many aircraft are currently eligible.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepthGauge.Set(float64(depth))
}
