// Package onboarding implements the first-run step machine: the ordered
// sequence of compliance and primer screens a new or policy-updated user
// must pass through before reaching the app.
package onboarding

// Step identifies one screen in the fixed onboarding order.
type Step string

const (
	StepAgeGate            Step = "age-gate"
	StepLegalConfirmation  Step = "legal-confirmation"
	StepConsentModal       Step = "consent-modal"
	StepNotificationPrimer Step = "notification-primer"
	StepCameraPrimer       Step = "camera-primer"
	StepCompleted          Step = "completed"
)

// stepOrder is the single source of truth for progression. Linear, no
// back-transitions except a full reset.
var stepOrder = []Step{
	StepAgeGate,
	StepLegalConfirmation,
	StepConsentModal,
	StepNotificationPrimer,
	StepCameraPrimer,
	StepCompleted,
}

// Status of the overall onboarding flow.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// State is the persisted onboarding slice.
type State struct {
	Status      Status `json:"status"`
	CurrentStep Step   `json:"currentStep"`
	Version     int    `json:"version"`
}

// Next returns the step following current in the fixed order. ok is false
// for completed (terminal) and for unknown steps.
func Next(current Step) (next Step, ok bool) {
	for i, step := range stepOrder[:len(stepOrder)-1] {
		if step == current {
			return stepOrder[i+1], true
		}
	}
	return current, false
}

// CompleteStep is the pure transition function: it advances only when step
// is the expected next step after current. Out-of-order and duplicate
// completion calls return current unchanged - tolerated, not errors, since
// UI effects may fire re-entrantly.
func CompleteStep(current, step Step) Step {
	next, ok := Next(current)
	if !ok || step != next {
		return current
	}
	return next
}

// ShouldShowOnboarding reports whether routing into the onboarding flow is
// required. True when the flow never started, or when a forced reset has
// rewound an otherwise-completed flow to a non-terminal step.
func ShouldShowOnboarding(status Status, currentStep Step) bool {
	switch status {
	case StatusNotStarted:
		return true
	case StatusInProgress:
		return currentStep != StepCompleted
	default:
		return false
	}
}

// Paths the router understands.
const (
	PathAgeGate            = "/age-gate"
	PathOnboarding         = "/onboarding"
	PathNotificationPrimer = "/notification-primer"
	PathCameraPrimer       = "/camera-primer"
	PathApp                = "/"
	PathLogin              = "/login"
	PathSignUp             = "/sign-up"
)

// RouteFor is the pure lookup from current step to target path, consulted by
// the startup routing effect.
func RouteFor(step Step) string {
	switch step {
	case StepAgeGate:
		return PathAgeGate
	case StepLegalConfirmation, StepConsentModal:
		return PathOnboarding
	case StepNotificationPrimer:
		return PathNotificationPrimer
	case StepCameraPrimer:
		return PathCameraPrimer
	default:
		return PathApp
	}
}

// excludedPaths are never redirect sources: when the user already sits on a
// login, sign-up, or gate screen the routing effect short-circuits instead
// of bouncing them, preventing redirect loops.
var excludedPaths = map[string]struct{}{
	PathLogin:              {},
	PathSignUp:             {},
	PathAgeGate:            {},
	PathOnboarding:         {},
	PathNotificationPrimer: {},
	PathCameraPrimer:       {},
}

// IsExcludedPath reports whether path is exempt from onboarding redirects.
func IsExcludedPath(path string) bool {
	_, ok := excludedPaths[path]
	return ok
}
