package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "plex2discord"

// Metrics holds all Prometheus metrics for the relay and the monitor.
type Metrics struct {
	// Relay
	WebhooksTotal *prometheus.CounterVec

	// Outbound notifications
	NotificationsTotal       *prometheus.CounterVec
	NotificationDurationSecs prometheus.Histogram

	// Availability monitor
	ProbesTotal         *prometheus.CounterVec
	ProbeDurationSecs   prometheus.Histogram
	ServerOnline        prometheus.Gauge // -1 = unknown, 0 = offline, 1 = online
	ConsecutiveFailures prometheus.Gauge
	TransitionsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
	pusher   *push.Pusher
}

// NewMetrics creates a new Metrics instance
func NewMetrics(pushgatewayURL, jobName string) *Metrics {
	m := &Metrics{
		WebhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Inbound webhook calls by result (relayed, ignored, invalid)",
		}, []string{"result"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound Discord notifications by kind and result (ok, error, dropped)",
		}, []string{"kind", "result"}),
		NotificationDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Duration of outbound Discord webhook calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Availability probes by result (success, failure)",
		}, []string{"result"}),
		ProbeDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of availability probes in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		ServerOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_online",
			Help:      "Media server state: -1=unknown, 0=offline, 1=online",
		}),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Consecutive failed probes in the current streak",
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Announced state transitions by target state",
		}, []string{"to"}),
	}
	m.ServerOnline.Set(-1)

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.WebhooksTotal,
		m.NotificationsTotal,
		m.NotificationDurationSecs,
		m.ProbesTotal,
		m.ProbeDurationSecs,
		m.ServerOnline,
		m.ConsecutiveFailures,
		m.TransitionsTotal,
	)

	// Set up pusher if URL is provided
	if pushgatewayURL != "" && jobName != "" {
		m.pusher = push.New(pushgatewayURL, jobName).
			Gatherer(m.registry)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordWebhook records the outcome of one inbound webhook call
func (m *Metrics) RecordWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(result).Inc()
}

// RecordNotification records an outbound call that was attempted
func (m *Metrics) RecordNotification(kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.NotificationDurationSecs.Observe(duration.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}

// RecordNotificationDropped records a notification sent after the dispatcher stopped.
func (m *Metrics) RecordNotificationDropped(kind string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, "dropped").Inc()
}

// RecordProbe records one availability probe
func (m *Metrics) RecordProbe(duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.ProbeDurationSecs.Observe(duration.Seconds())
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ProbesTotal.WithLabelValues(result).Inc()
}

// RecordState mirrors the monitor state into gauges. online is nil while unknown.
func (m *Metrics) RecordState(online *bool, consecutiveFailures int) {
	if m == nil {
		return
	}
	switch {
	case online == nil:
		m.ServerOnline.Set(-1)
	case *online:
		m.ServerOnline.Set(1)
	default:
		m.ServerOnline.Set(0)
	}
	m.ConsecutiveFailures.Set(float64(consecutiveFailures))
}

// RecordTransition records an announced transition
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(to).Inc()
}

// Push pushes all metrics to the Pushgateway
func (m *Metrics) Push(ctx context.Context) error {
	if m == nil || m.pusher == nil {
		return nil
	}

	if err := m.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to Pushgateway: %w", err)
	}
	return nil
}

// InitializeMetrics creates metrics and attaches the pusher grouping when a
// Pushgateway is configured.
func InitializeMetrics(pushgatewayURL, jobName string) *Metrics {
	m := NewMetrics(pushgatewayURL, jobName)
	if m.pusher == nil {
		return m
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		m.pusher = m.pusher.Grouping("instance", hostname)
	}
	return m
}
