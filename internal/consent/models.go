// Package consent owns the telemetry/crash/AI-training consent slice and
// the SDK gating registry built on it.
//
// Consent is fail-closed: every value defaults to false until the user
// explicitly decides, and a gated SDK stays silent until a confirmed durable
// write backs the decision. Every write is paired with an immutable audit
// record.
package consent

// Category labels the processing purpose an SDK needs consent for.
type Category string

const (
	CategoryTelemetry        Category = "telemetry"
	CategoryExperiments      Category = "experiments"
	CategoryAITraining       Category = "ai-training"
	CategoryCrashDiagnostics Category = "crash-diagnostics"
)

// Values holds the user's per-category decisions. The zero value is the
// pre-acquisition default: everything denied.
type Values struct {
	Telemetry        bool `json:"telemetry"`
	Experiments      bool `json:"experiments"`
	AITraining       bool `json:"aiTraining"`
	CrashDiagnostics bool `json:"crashDiagnostics"`
}

// Granted reports the decision for one category.
func (v Values) Granted(category Category) bool {
	switch category {
	case CategoryTelemetry:
		return v.Telemetry
	case CategoryExperiments:
		return v.Experiments
	case CategoryAITraining:
		return v.AITraining
	case CategoryCrashDiagnostics:
		return v.CrashDiagnostics
	default:
		return false
	}
}

// Meta is the audit metadata accompanying every consent write.
type Meta struct {
	PolicyVersion string `json:"policyVersion"`
	LawfulBasis   string `json:"lawfulBasis"`
	Region        string `json:"region"`
	UISurface     string `json:"uiSurface"`
}

// State is the persisted consent slice.
type State struct {
	Values        Values `json:"values"`
	Meta          Meta   `json:"meta"`
	Acquired      bool   `json:"acquired"`
	DecidedAtUnix int64  `json:"decidedAtUnix,omitempty"`

	// PersistConfirmed flips true only once the decision is known to have
	// reached durable storage - either the synchronous write succeeded or a
	// later launch hydrated it back. SDK gating keys off this, not Acquired.
	PersistConfirmed bool `json:"persistConfirmed"`
}
