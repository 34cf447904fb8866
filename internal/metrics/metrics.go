package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the phychat backend
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Engine metrics
	Recommendations *prometheus.CounterVec
	TutorReplies    *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	TimeSpent       *prometheus.HistogramVec

	// Storage metrics
	StoreFailures *prometheus.CounterVec

	// Dependency metrics
	DependencyUp *prometheus.GaugeVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
// Collectors are registered once per process; later calls return the same set.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "phychat_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "route", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "phychat_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
			Recommendations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "phychat_recommendations_total",
					Help: "Total number of challenge recommendations by difficulty",
				},
				[]string{"difficulty"},
			),
			TutorReplies: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "phychat_tutor_replies_total",
					Help: "Total number of tutor replies by detected error type",
				},
				[]string{"error_type"},
			),
			Outcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "phychat_outcomes_total",
					Help: "Total number of challenge outcomes reported",
				},
				[]string{"status"},
			),
			TimeSpent: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "phychat_challenge_time_spent_seconds",
					Help:    "Time students spent on a challenge attempt",
					Buckets: prometheus.ExponentialBuckets(15, 2, 10), // 15s to ~2h
				},
				[]string{"status"},
			),
			StoreFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "phychat_store_failures_total",
					Help: "Data-access failures that were recovered by falling back",
				},
				[]string{"store", "operation"},
			),
			DependencyUp: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "phychat_dependency_up",
					Help: "Dependency health (1 healthy, 0 failing)",
				},
				[]string{"dependency"},
			),
		}
	})
	return sharedMetrics
}

// StoreFailure counts a recovered data-access failure. Safe on a nil receiver.
func (m *Metrics) StoreFailure(store, operation string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(store, operation).Inc()
}

// Outcome records a reported challenge attempt. Safe on a nil receiver.
func (m *Metrics) Outcome(status string, timeSpentSeconds int) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status).Inc()
	if timeSpentSeconds > 0 {
		m.TimeSpent.WithLabelValues(status).Observe(float64(timeSpentSeconds))
	}
}

// ObserveHTTP records a served request. Safe on a nil receiver.
func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Recommendation counts a recommendation by difficulty. Safe on a nil receiver.
func (m *Metrics) Recommendation(difficulty string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(difficulty).Inc()
}

// TutorReply counts a tutor reply by detected error type. Safe on a nil receiver.
func (m *Metrics) TutorReply(errorType string) {
	if m == nil {
		return
	}
	m.TutorReplies.WithLabelValues(errorType).Inc()
}
