package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eojeboda"

// Metrics holds the Prometheus collectors for the service.
// All helper methods are safe to call on a nil *Metrics.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	CacheLookups     *prometheus.CounterVec   // labels: result={hit,miss}
	DerivationErrors *prometheus.CounterVec   // labels: operation={snapshot,hourly,extremes}

	// Reminder metrics.
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	Subscribers         prometheus.Gauge
	DispatchDuration    prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Weather provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Weather provider fetch duration including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observation_cache_total",
			Help:      "Observation cache lookups by result.",
		}, []string{"result"}),
		DerivationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "derivation_errors_total",
			Help:      "Comparison derivations rejected because of unusable series.",
		}, []string{"operation"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Reminder push messages handed to the publisher.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Reminders that could not be built or published.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Registered reminder subscribers at the last dispatch run.",
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of a reminder dispatch run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheLookups,
		m.DerivationErrors,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.Subscribers,
		m.DispatchDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) ObserveProvider(provider string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) DerivationFailed(operation string) {
	if m == nil {
		return
	}
	m.DerivationErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) Dispatched(sent, failed, subscribers int, took time.Duration) {
	if m == nil {
		return
	}
	m.NotificationsSent.Add(float64(sent))
	m.NotificationsFailed.Add(float64(failed))
	m.Subscribers.Set(float64(subscribers))
	m.DispatchDuration.Observe(took.Seconds())
}
