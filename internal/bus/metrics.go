package bus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "starter_bus"

// busMetrics holds the collectors of one bus. All collectors carry a constant
// "bus" label so several buses can share a registry.
type busMetrics struct {
	posts        *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	saturations  *prometheus.CounterVec
	waitDuration *prometheus.HistogramVec
}

func newBusMetrics(name string, reg prometheus.Registerer) *busMetrics {
	labels := prometheus.Labels{"bus": name}
	m := &busMetrics{
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "posts_total",
			Help:        "Events posted, by event type.",
			ConstLabels: labels,
		}, []string{"event_type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "deliveries_total",
			Help:        "Events handed to subscriber handlers, by event type.",
			ConstLabels: labels,
		}, []string{"event_type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "callback_failures_total",
			Help:        "Subscriber handlers that returned an error or panicked, by event type.",
			ConstLabels: labels,
		}, []string{"event_type"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "wait_timeouts_total",
			Help:        "Post-and-wait calls that gave up before every subscriber finished.",
			ConstLabels: labels,
		}, []string{"event_type"}),
		saturations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "saturations_total",
			Help:        "Posts rejected because a subscriber buffer was full.",
			ConstLabels: labels,
		}, []string{"event_type"}),
		waitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "wait_duration_seconds",
			Help:        "Time post-and-wait calls spent waiting for subscribers.",
			ConstLabels: labels,
			Buckets:     []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"event_type"}),
	}

	if reg != nil {
		reg.MustRegister(m.posts, m.deliveries, m.failures, m.timeouts, m.saturations, m.waitDuration)
	}
	return m
}

func (m *busMetrics) posted(eventType string) {
	m.posts.WithLabelValues(eventType).Inc()
}

func (m *busMetrics) delivered(eventType string) {
	m.deliveries.WithLabelValues(eventType).Inc()
}

func (m *busMetrics) failed(eventType string) {
	m.failures.WithLabelValues(eventType).Inc()
}

func (m *busMetrics) saturated(eventType string) {
	m.saturations.WithLabelValues(eventType).Inc()
}

func (m *busMetrics) waited(eventType string, d time.Duration, timedOut bool) {
	m.waitDuration.WithLabelValues(eventType).Observe(d.Seconds())
	if timedOut {
		m.timeouts.WithLabelValues(eventType).Inc()
	}
}
