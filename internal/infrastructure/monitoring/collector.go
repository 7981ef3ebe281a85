package monitoring

import (
	"time"

	"streamcast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes session lifecycle metrics.
type Collector struct {
	sessionsActive       prometheus.Gauge
	sessionsStartedTotal prometheus.Counter
	startFailuresTotal   *prometheus.CounterVec

	transitionAttemptsTotal *prometheus.CounterVec
	reconcileTotal          *prometheus.CounterVec
	encoderEventsTotal      *prometheus.CounterVec

	awaitActiveDuration prometheus.Histogram
	promotionDuration   prometheus.Histogram
}

// NewCollector registers session metrics on the given registerer. Tests pass
// a fresh registry to avoid duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_sessions_active",
			Help: "Number of currently active broadcast sessions (0 or 1)",
		}),

		sessionsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_sessions_started_total",
			Help: "Total number of broadcast sessions started",
		}),

		startFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_session_start_failures_total",
			Help: "Total number of failed session starts by stage",
		}, []string{"stage"}),

		transitionAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_transition_attempts_total",
			Help: "Total number of remote broadcast transition attempts by outcome",
		}, []string{"outcome"}),

		reconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_endpoint_reconcile_total",
			Help: "Total number of endpoint reconciliations by outcome",
		}, []string{"outcome"}),

		encoderEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_encoder_events_total",
			Help: "Total number of encoder state-change events by kind",
		}, []string{"kind"}),

		awaitActiveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamcast_await_active_duration_seconds",
			Help:    "Time spent waiting for confirmed encoder activity",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		promotionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamcast_promotion_duration_seconds",
			Help:    "Time spent promoting the remote broadcast to live",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
}

func (c *Collector) SessionStarted() {
	c.sessionsStartedTotal.Inc()
	c.sessionsActive.Set(1)
}

func (c *Collector) SessionEnded() {
	c.sessionsActive.Set(0)
}

func (c *Collector) StartFailed(stage domain.Stage) {
	c.startFailuresTotal.WithLabelValues(string(stage)).Inc()
}

func (c *Collector) TransitionAttempted(outcome domain.TransitionOutcome) {
	c.transitionAttemptsTotal.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) ReconcileFinished(outcome domain.ApplyOutcome) {
	c.reconcileTotal.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) EncoderEventSeen(kind domain.EncoderEventKind) {
	c.encoderEventsTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ObserveAwaitActive(d time.Duration) {
	c.awaitActiveDuration.Observe(d.Seconds())
}

func (c *Collector) ObservePromotion(d time.Duration) {
	c.promotionDuration.Observe(d.Seconds())
}
