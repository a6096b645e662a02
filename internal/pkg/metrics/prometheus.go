package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

type MetricsCollector struct {
	registry         *prometheus.Registry
	commands         *prometheus.CounterVec
	retries          *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	checkoutFailures *prometheus.CounterVec
	projections      *prometheus.CounterVec
	feedClients      prometheus.Gauge
	logger           *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsCollector{
		registry: registry,
		commands: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "guest_stay_commands_total",
			Help: "Guest stay commands handled, by command and outcome",
		}, []string{"command", "outcome"}),
		retries: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "guest_stay_command_retries_total",
			Help: "Command attempts retried after a stream version conflict",
		}, []string{"command"}),
		commandDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guest_stay_command_duration_seconds",
			Help:    "Time taken to handle a guest stay command",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		checkoutFailures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "guest_stay_checkout_failures_total",
			Help: "Recorded checkout failures by reason",
		}, []string{"reason"}),
		projections: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "guest_stay_projection_updates_total",
			Help: "Read model updates by result",
		}, []string{"result"}),
		feedClients: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "guest_stay_feed_clients",
			Help: "Open live feed connections",
		}),
		logger: logger,
	}
}

func (m *MetricsCollector) RecordCommand(command, outcome string, duration time.Duration) {
	m.commands.WithLabelValues(command, outcome).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordRetry(command string) {
	m.retries.WithLabelValues(command).Inc()
}

func (m *MetricsCollector) RecordCheckoutFailure(reason string) {
	m.checkoutFailures.WithLabelValues(reason).Inc()
}

func (m *MetricsCollector) RecordProjection(result string) {
	m.projections.WithLabelValues(result).Inc()
}

func (m *MetricsCollector) SetFeedClients(n int) {
	m.feedClients.Set(float64(n))
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
