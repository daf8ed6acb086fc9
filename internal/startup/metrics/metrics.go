package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the startup sequence.
type Metrics struct {
	// Hydration outcomes by store and result (hydrated, failed, timed_out)
	HydrationOutcome *prometheus.CounterVec

	// End-to-end startup latency until both readiness flags flip
	StartupDuration prometheus.Histogram

	// Routing decisions by target path
	RoutingDecisions *prometheus.CounterVec

	// Forced compliance-cycle resets from legal version bumps
	ComplianceResets prometheus.Counter

	// Timezone changes detected by the poller
	TimezoneChanges prometheus.Counter

	// Consent writes by result (persisted, persist_failed)
	ConsentWrites *prometheus.CounterVec
}

// New registers all startup metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-provided registry; tests use this to avoid
// duplicate-registration panics across instances.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HydrationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cultivar_startup_hydration_outcomes_total",
			Help: "Hydration outcomes by store and result",
		}, []string{"store", "outcome"}),

		StartupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cultivar_startup_duration_seconds",
			Help:    "Startup latency until both readiness flags are set",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		RoutingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cultivar_startup_routing_decisions_total",
			Help: "Navigation replace commands issued by target path",
		}, []string{"target"}),

		ComplianceResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "cultivar_startup_compliance_resets_total",
			Help: "Compliance-flow resets forced by legal version bumps",
		}),

		TimezoneChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "cultivar_startup_timezone_changes_total",
			Help: "Device timezone changes detected by the poller",
		}),

		ConsentWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cultivar_consent_writes_total",
			Help: "Consent decisions written by persistence result",
		}, []string{"result"}),
	}
}

// IncHydrationOutcome records one hydration result.
func (m *Metrics) IncHydrationOutcome(store, outcome string) {
	if m != nil {
		m.HydrationOutcome.WithLabelValues(store, outcome).Inc()
	}
}

// ObserveStartupDuration records the time until readiness.
func (m *Metrics) ObserveStartupDuration(d time.Duration) {
	if m != nil {
		m.StartupDuration.Observe(d.Seconds())
	}
}

// IncRoutingDecision records one issued replace command.
func (m *Metrics) IncRoutingDecision(target string) {
	if m != nil {
		m.RoutingDecisions.WithLabelValues(target).Inc()
	}
}

// IncComplianceReset records a forced compliance-cycle reset.
func (m *Metrics) IncComplianceReset() {
	if m != nil {
		m.ComplianceResets.Inc()
	}
}

// IncTimezoneChange records a detected timezone change.
func (m *Metrics) IncTimezoneChange() {
	if m != nil {
		m.TimezoneChanges.Inc()
	}
}

// IncConsentWrite records one consent write result.
func (m *Metrics) IncConsentWrite(result string) {
	if m != nil {
		m.ConsentWrites.WithLabelValues(result).Inc()
	}
}
