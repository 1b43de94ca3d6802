package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	entriesRecorded  *prometheus.CounterVec
	entriesSettled   *prometheus.CounterVec
	boostTransitions *prometheus.CounterVec
	referralMismatch prometheus.Gauge
	stalePending     prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		entriesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_recorded_total",
			Help: "Ledger entries written, by kind and initial status",
		}, []string{"kind", "status"}),
		entriesSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_settled_total",
			Help: "Ledger entries settled, by kind and outcome",
		}, []string{"kind", "outcome"}),
		boostTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boost_transitions_total",
			Help: "Boost status transitions",
		}, []string{"from", "to"}),
		referralMismatch: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reconcile_referral_mismatches",
			Help: "Referral records whose status or amount differs from the linked entry",
		}),
		stalePending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reconcile_stale_pending_entries",
			Help: "Pending ledger entries older than the reconciliation horizon",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) EntryRecorded(kind, status string) {
	m.entriesRecorded.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) EntrySettled(kind, outcome string) {
	m.entriesSettled.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) BoostTransitioned(from, to string) {
	m.boostTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SetReconciliation(referralMismatches, stalePending int) {
	m.referralMismatch.Set(float64(referralMismatches))
	m.stalePending.Set(float64(stalePending))
}
