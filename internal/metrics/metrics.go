package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal       *prometheus.CounterVec
	TurnDuration     *prometheus.HistogramVec
	TurnErrorsTotal  *prometheus.CounterVec

	// Action metrics
	ActionDispatchesTotal *prometheus.CounterVec
	ActionDuration        *prometheus.HistogramVec

	// Rendering metrics
	TrimmedItemsTotal prometheus.Counter
	RenderedTokens    prometheus.Histogram

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	SessionsEvicted prometheus.Counter

	// Event metrics
	EventsPublishedTotal *prometheus.CounterVec
}

// New creates the metric set on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sash_turns_total",
			Help: "Total session turns handled, by outcome",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sash_turn_duration_seconds",
			Help:    "Duration of session turns",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		TurnErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sash_turn_errors_total",
			Help: "Turn failures by error class",
		}, []string{"class"}),
		ActionDispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sash_action_dispatches_total",
			Help: "Action dispatches by result",
		}, []string{"result"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sash_action_duration_seconds",
			Help:    "Duration of action handler execution",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		TrimmedItemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sash_trimmed_items_total",
			Help: "Conversation items dropped by context trimming",
		}),
		RenderedTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sash_rendered_tokens",
			Help:    "Estimated token size of rendered context documents",
			Buckets: prometheus.ExponentialBuckets(128, 2, 10),
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sash_sessions_active",
			Help: "Number of live sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sash_sessions_total",
			Help: "Total sessions created",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sash_sessions_evicted_total",
			Help: "Total sessions evicted",
		}),
		EventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sash_events_published_total",
			Help: "Events published to the bus, by kind",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		m.TurnsTotal,
		m.TurnDuration,
		m.TurnErrorsTotal,
		m.ActionDispatchesTotal,
		m.ActionDuration,
		m.TrimmedItemsTotal,
		m.RenderedTokens,
		m.SessionsActive,
		m.SessionsTotal,
		m.SessionsEvicted,
		m.EventsPublishedTotal,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var (
	defaultOnce sync.Once
	defaultSet  *Metrics
)

// Default returns the process-wide metric set, creating it on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultSet = New()
	})
	return defaultSet
}

// RecordTurn records one completed turn.
func RecordTurn(outcome string, d time.Duration) {
	m := Default()
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordTurnError records a turn failure by error class.
func RecordTurnError(class string) {
	Default().TurnErrorsTotal.WithLabelValues(class).Inc()
}

// RecordActionDispatch records one action dispatch.
func RecordActionDispatch(action, result string, d time.Duration) {
	m := Default()
	m.ActionDispatchesTotal.WithLabelValues(result).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordRender records the outcome of one render call.
func RecordRender(estimatedTokens, droppedItems int) {
	m := Default()
	m.RenderedTokens.Observe(float64(estimatedTokens))
	if droppedItems > 0 {
		m.TrimmedItemsTotal.Add(float64(droppedItems))
	}
}

// RecordEventPublished counts one published event.
func RecordEventPublished(kind string) {
	Default().EventsPublishedTotal.WithLabelValues(kind).Inc()
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(n int) {
	Default().SessionsActive.Set(float64(n))
}

// RecordSessionCreated counts one created session.
func RecordSessionCreated() {
	Default().SessionsTotal.Inc()
}

// RecordSessionEvicted counts one evicted session.
func RecordSessionEvicted() {
	Default().SessionsEvicted.Inc()
}
