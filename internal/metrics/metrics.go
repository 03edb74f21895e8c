// Package metrics exposes Prometheus metrics for the action engine, the
// context assembler and the completion provider.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "myrai_care"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	actionsParsed    *prometheus.CounterVec
	parseFailures    prometheus.Counter
	actionOutcomes   *prometheus.CounterVec
	guardrailDenials *prometheus.CounterVec
	crisisFlags      *prometheus.CounterVec
	pendingActive    prometheus.Gauge
	confirmations    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	turnsTotal   *prometheus.CounterVec
	turnDuration prometheus.Histogram

	summaryRefreshes *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	injectionBlocked prometheus.Counter
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns a process-wide instance on its own registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.NewRegistry())
	})
	return defaultMetrics
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		actionsParsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_parsed_total",
			Help:      "Action requests parsed from assistant replies",
		}, []string{"encoding"}),

		parseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_parse_failures_total",
			Help:      "Action markers dropped because their payload was malformed",
		}),

		actionOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_outcomes_total",
			Help:      "Action requests by capability, final stage and result",
		}, []string{"capability", "stage", "result"}),

		guardrailDenials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_denials_total",
			Help:      "Action requests denied by the guardrail",
		}, []string{"reason"}),

		crisisFlags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_flags_total",
			Help:      "Actions flagged as crisis values",
		}, []string{"capability"}),

		pendingActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_confirmations",
			Help:      "Confirmations proposed and not yet resolved",
		}),

		confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation lifecycle events",
		}, []string{"event"}),

		dispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Executor binding latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"capability"}),

		turnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns handled",
		}, []string{"result"}),

		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		summaryRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_refreshes_total",
			Help:      "Rolling summary refresh attempts",
		}, []string{"trigger", "result"}),

		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Completion provider requests",
		}, []string{"provider", "result"}),

		injectionBlocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injection_blocked_total",
			Help:      "User messages flagged as prompt injection",
		}),
	}

	reg.MustRegister(collectors.NewGoCollector())

	return m
}

func (m *Metrics) RecordActionParsed(encoding string) {
	if m == nil {
		return
	}
	m.actionsParsed.WithLabelValues(encoding).Inc()
}

func (m *Metrics) RecordParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

func (m *Metrics) RecordActionOutcome(capability, stage string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.actionOutcomes.WithLabelValues(capability, stage, result).Inc()
}

func (m *Metrics) RecordGuardrailDenial(reason string) {
	if m == nil {
		return
	}
	m.guardrailDenials.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCrisis(capability string) {
	if m == nil {
		return
	}
	m.crisisFlags.WithLabelValues(capability).Inc()
}

// RecordConfirmation tracks proposed, confirmed, rejected and expired events
// and keeps the pending gauge in step.
func (m *Metrics) RecordConfirmation(event string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(event).Inc()
	switch event {
	case "proposed":
		m.pendingActive.Inc()
	case "confirmed", "rejected", "expired":
		m.pendingActive.Dec()
	}
}

func (m *Metrics) RecordDispatch(capability string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(capability).Observe(d.Seconds())
}

func (m *Metrics) RecordTurn(success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.turnsTotal.WithLabelValues(result).Inc()
	m.turnDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordSummaryRefresh(trigger string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.summaryRefreshes.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) RecordProviderRequest(provider string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.providerRequests.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) RecordInjectionBlocked() {
	if m == nil {
		return
	}
	m.injectionBlocked.Inc()
}

// Registry returns the underlying registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
