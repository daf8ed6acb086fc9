package audit

import "time"

// Actions recorded by the core.
const (
	ActionConsentSet      = "consent_set"
	ActionComplianceReset = "compliance_reset"
	ActionStartupSettled  = "startup_settled"
)

// Event is emitted from domain logic to capture key actions. Records are
// immutable once appended; keep the shape transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Action        string         `json:"action"`
	PolicyVersion string         `json:"policyVersion,omitempty"`
	LawfulBasis   string         `json:"lawfulBasis,omitempty"`
	Region        string         `json:"region,omitempty"`
	UISurface     string         `json:"uiSurface,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}
