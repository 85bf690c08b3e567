package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Prometheus instruments for the update pipeline. Registered on the given
// registry so tests and the HTTP /metrics endpoint share one instance.
// ══════════════════════════════════════════════════════════════════════════════

// Command status labels.
const (
	StatusOK        = "ok"
	StatusUserError = "user_error"
	StatusError     = "error"
	StatusPanic     = "panic"
)

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string

	// Buckets are the latency histogram buckets in seconds.
	Buckets []float64
}

// DefaultMetricsConfig returns sensible defaults.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "wordle_bot",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}
}

// MetricsMiddleware records per-update and per-command metrics.
type MetricsMiddleware struct {
	updates     *prometheus.CounterVec
	commands    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited prometheus.Counter
	duplicates  prometheus.Counter
	inFlight    prometheus.Gauge
}

// NewMetricsMiddleware registers the bot metrics on reg.
func NewMetricsMiddleware(reg prometheus.Registerer, config MetricsConfig) *MetricsMiddleware {
	if config.Namespace == "" {
		config.Namespace = DefaultMetricsConfig().Namespace
	}
	if len(config.Buckets) == 0 {
		config.Buckets = DefaultMetricsConfig().Buckets
	}
	f := promauto.With(reg)

	return &MetricsMiddleware{
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind",
		}, []string{"kind"}),

		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "telegram",
			Name:      "commands_total",
			Help:      "Handled commands, by command and status",
		}, []string{"command", "status"}),

		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "telegram",
			Name:      "command_duration_seconds",
			Help:      "Command handling latency in seconds",
			Buckets:   config.Buckets,
		}, []string{"command"}),

		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "telegram",
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter",
		}),

		duplicates: f.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "telegram",
			Name:      "duplicate_updates_total",
			Help:      "Redelivered updates skipped by the deduplicator",
		}),

		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: "telegram",
			Name:      "updates_in_flight",
			Help:      "Updates currently being handled",
		}),
	}
}

// RequestContext tracks one command from start to end.
type RequestContext struct {
	m       *MetricsMiddleware
	command string
	start   time.Time
}

// Start begins tracking a command.
func (m *MetricsMiddleware) Start(command string) *RequestContext {
	m.inFlight.Inc()
	return &RequestContext{m: m, command: command, start: time.Now()}
}

// End records the command with the given status.
func (rc *RequestContext) End(status string) {
	rc.m.inFlight.Dec()
	rc.m.commands.WithLabelValues(rc.command, status).Inc()
	rc.m.latency.WithLabelValues(rc.command).Observe(time.Since(rc.start).Seconds())
}

// ObserveUpdate counts an incoming update.
func (m *MetricsMiddleware) ObserveUpdate(kind string) {
	m.updates.WithLabelValues(kind).Inc()
}

// ObserveRateLimited counts a dropped update.
func (m *MetricsMiddleware) ObserveRateLimited() {
	m.rateLimited.Inc()
}

// ObserveDuplicate counts a skipped redelivery.
func (m *MetricsMiddleware) ObserveDuplicate() {
	m.duplicates.Inc()
}
