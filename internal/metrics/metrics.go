package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "line"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Webhook metrics
	WebhookDeliveriesTotal  *prometheus.CounterVec
	WebhookDeliveryDuration *prometheus.HistogramVec
	WebhookEventsTotal      *prometheus.CounterVec
	HandlerDuration         *prometheus.HistogramVec
	HandlerErrorsTotal      *prometheus.CounterVec

	// Messaging API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Hand-off queue metrics
	HandoffTasksTotal *prometheus.CounterVec
	HandoffPending    prometheus.Gauge

	// Relay metrics
	RelayPublishedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Total number of webhook deliveries by outcome",
			},
			[]string{"status"},
		),
		WebhookDeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_delivery_duration_seconds",
				Help:      "Time spent verifying, parsing and dispatching one delivery",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total number of webhook events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Duration of event handler calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		HandlerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Total number of failed or panicking handler calls",
			},
			[]string{"kind"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of Messaging API requests",
			},
			[]string{"endpoint", "code"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Duration of Messaging API requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		HandoffTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handoff_tasks_total",
				Help:      "Total number of hand-off tasks by outcome",
			},
			[]string{"status"},
		),
		HandoffPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "handoff_pending_tasks",
				Help:      "Hand-off tasks waiting or running across all lanes",
			},
		),

		RelayPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_published_total",
				Help:      "Total number of events relayed to NATS",
			},
			[]string{"kind", "status"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.WebhookDeliveriesTotal)
	m.registry.MustRegister(m.WebhookDeliveryDuration)
	m.registry.MustRegister(m.WebhookEventsTotal)
	m.registry.MustRegister(m.HandlerDuration)
	m.registry.MustRegister(m.HandlerErrorsTotal)

	m.registry.MustRegister(m.APIRequestsTotal)
	m.registry.MustRegister(m.APIRequestDuration)

	m.registry.MustRegister(m.HandoffTasksTotal)
	m.registry.MustRegister(m.HandoffPending)

	m.registry.MustRegister(m.RelayPublishedTotal)
}

// ObserveDelivery records the outcome of one webhook delivery
func (m *Metrics) ObserveDelivery(status string, duration time.Duration) {
	m.WebhookDeliveriesTotal.WithLabelValues(status).Inc()
	m.WebhookDeliveryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveEvent records what happened to one webhook event
func (m *Metrics) ObserveEvent(kind string, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveHandler records one handler call
func (m *Metrics) ObserveHandler(kind string, duration time.Duration, failed bool) {
	m.HandlerDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if failed {
		m.HandlerErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveAPIRequest records one Messaging API call. code is 0 when no
// response was received.
func (m *Metrics) ObserveAPIRequest(endpoint string, code int, duration time.Duration) {
	m.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveHandoff records a finished hand-off task
func (m *Metrics) ObserveHandoff(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.HandoffTasksTotal.WithLabelValues(status).Inc()
}

// SetHandoffPending sets the number of hand-off tasks not yet finished.
// Lanes are per conversation, so depth is not labelled by lane.
func (m *Metrics) SetHandoffPending(pending int) {
	m.HandoffPending.Set(float64(pending))
}

// ObserveRelay records one publish attempt
func (m *Metrics) ObserveRelay(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RelayPublishedTotal.WithLabelValues(kind, status).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
