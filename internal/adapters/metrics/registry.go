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

const namespace = "planner_license"

// Registry owns the service's Prometheus collectors.
type Registry struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	TrialsIssuedTotal      *prometheus.CounterVec
	ActivationsTotal       *prometheus.CounterVec
	RemindersTotal         *prometheus.CounterVec
	NotificationRunsTotal  prometheus.Counter
	NotificationRunChecked prometheus.Gauge
	NotificationRunSent    prometheus.Gauge
	NotificationRunSkipped prometheus.Gauge
	NotificationRunErrors  prometheus.Gauge
	OutboxPublishedTotal   *prometheus.CounterVec
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}
	r.initHTTPMetrics()
	r.initLicenseMetrics()
	r.initNotificationMetrics()
	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

func (r *Registry) initLicenseMetrics() {
	r.TrialsIssuedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_requests_total",
			Help:      "Trial issuance requests by outcome",
		},
		[]string{"outcome"},
	)
	r.ActivationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "License activation attempts by outcome",
		},
		[]string{"outcome"},
	)
	r.OutboxPublishedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events processed by outcome",
		},
		[]string{"outcome"},
	)
}

func (r *Registry) initNotificationMetrics() {
	r.RemindersTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_reminders_total",
			Help:      "Trial reminder deliveries by type, channel and outcome",
		},
		[]string{"notification_type", "channel", "outcome"},
	)
	r.NotificationRunsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_runs_total",
			Help:      "Completed trial notification scans",
		},
	)
	gauge := func(name, help string) prometheus.Gauge {
		return promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	r.NotificationRunChecked = gauge("notification_last_run_checked", "Trials examined by the last notification scan")
	r.NotificationRunSent = gauge("notification_last_run_sent", "Reminders sent by the last notification scan")
	r.NotificationRunSkipped = gauge("notification_last_run_skipped", "Trials skipped by the last notification scan")
	r.NotificationRunErrors = gauge("notification_last_run_errors", "Failures in the last notification scan")
}

func (r *Registry) TrialIssued(outcome string) {
	r.TrialsIssuedTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) Activation(outcome string) {
	r.ActivationsTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) ReminderDelivery(kind, channel, outcome string) {
	r.RemindersTotal.WithLabelValues(kind, channel, outcome).Inc()
}

func (r *Registry) NotificationRun(checked, sent, skipped, errors int) {
	r.NotificationRunsTotal.Inc()
	r.NotificationRunChecked.Set(float64(checked))
	r.NotificationRunSent.Set(float64(sent))
	r.NotificationRunSkipped.Set(float64(skipped))
	r.NotificationRunErrors.Set(float64(errors))
}

// OutboxEvent counts one outbox record by publish outcome.
func (r *Registry) OutboxEvent(outcome string) {
	r.OutboxPublishedTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveHTTP(method, route string, statusCode int, elapsed time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}
