package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RegistrationsTotal  *prometheus.CounterVec
	StoredRegistrations prometheus.Gauge
	UniqueCountries     prometheus.Gauge
	RefreshTotal        *prometheus.CounterVec
	RefreshDuration     prometheus.Histogram
	HTTPLatency         *prometheus.HistogramVec
	MalformedDocuments  prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "africamap_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}), // outcome: "created", "invalid", "error"
		StoredRegistrations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "africamap_stored_registrations",
			Help: "Registrations in the store as of the last refresh",
		}),
		UniqueCountries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "africamap_unique_countries",
			Help: "Distinct countries as of the last refresh",
		}),
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "africamap_refresh_total",
			Help: "Dashboard refresh runs by outcome",
		}, []string{"outcome"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "africamap_refresh_duration_seconds",
			Help:    "Duration of a full aggregation and view build",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "africamap_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "method"}),
		MalformedDocuments: factory.NewCounter(prometheus.CounterOpts{
			Name: "africamap_malformed_documents_total",
			Help: "Stored documents that failed to decode and were read as empty",
		}),
	}
}

// IncrementRegistration records a registration attempt outcome.
func (m *Metrics) IncrementRegistration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefresh records a refresh run. Call with time.Now() at the start of the run.
func (m *Metrics) ObserveRefresh(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(time.Since(start).Seconds())
}

// SetTotals publishes the aggregate totals of the latest refresh.
func (m *Metrics) SetTotals(registrations, countries int) {
	if m == nil {
		return
	}
	m.StoredRegistrations.Set(float64(registrations))
	m.UniqueCountries.Set(float64(countries))
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(route, method string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}

// IncrementMalformedDocument records a stored blob that was read as empty.
func (m *Metrics) IncrementMalformedDocument() {
	if m == nil {
		return
	}
	m.MalformedDocuments.Inc()
}
