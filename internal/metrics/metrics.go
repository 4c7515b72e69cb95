// Package metrics exposes Prometheus collectors for SOAP traffic, WSAA
// logins and credential cache lookups.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheExpired  = "expired"
	CacheDisabled = "disabled"
)

// Call outcomes
const (
	OutcomeSuccess       = "success"
	OutcomeServiceError  = "service_error"
	OutcomeFault         = "fault"
	OutcomeTransport     = "transport_error"
	OutcomeConfiguration = "configuration_error"
	OutcomeSigning       = "signing_error"
)

var (
	soapCallsTotal    *prometheus.CounterVec
	soapCallDuration  *prometheus.HistogramVec
	loginsTotal       *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Recorder records afipws metrics. The zero value is usable; recording is
// a no-op until InitMetrics has run.
type Recorder struct{}

// NewRecorder creates a new Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	metricsOnce.Do(func() {
		soapCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afipws_soap_calls_total",
				Help: "Total number of SOAP calls by service, operation and outcome",
			},
			[]string{"service", "operation", "outcome"},
		)

		soapCallDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "afipws_soap_call_duration_seconds",
				Help:    "Duration of SOAP round trips in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		)

		loginsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afipws_logins_total",
				Help: "Total number of WSAA logins by service and outcome",
			},
			[]string{"service", "outcome"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afipws_credentials_cache_lookups_total",
				Help: "Credential cache lookups by result",
			},
			[]string{"result"},
		)

		metricsRegistered = true
	})
}

// IsMetricsRegistered reports whether InitMetrics has run
func IsMetricsRegistered() bool {
	return metricsRegistered
}

// RecordSOAPCall records one SOAP round trip.
func (r *Recorder) RecordSOAPCall(service, operation, outcome string, elapsed time.Duration) {
	if r == nil || !metricsRegistered {
		return
	}
	soapCallsTotal.WithLabelValues(service, operation, outcome).Inc()
	soapCallDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// RecordLogin records a WSAA login attempt.
func (r *Recorder) RecordLogin(service, outcome string) {
	if r == nil || !metricsRegistered {
		return
	}
	loginsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordCacheLookup records a credentials cache lookup.
func (r *Recorder) RecordCacheLookup(result string) {
	if r == nil || !metricsRegistered {
		return
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SOAPCallsTotal returns the call counter (for testing)
func SOAPCallsTotal() *prometheus.CounterVec {
	return soapCallsTotal
}

// LoginsTotal returns the login counter (for testing)
func LoginsTotal() *prometheus.CounterVec {
	return loginsTotal
}

// CacheLookupsTotal returns the cache lookup counter (for testing)
func CacheLookupsTotal() *prometheus.CounterVec {
	return cacheLookupsTotal
}
