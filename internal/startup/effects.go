package startup

import (
	"context"

	"cultivar/internal/agegate"
	"cultivar/internal/audit"
	"cultivar/internal/consent"
	"cultivar/internal/legal"
	"cultivar/internal/onboarding"
)

// effectStep is one stage of the routing pipeline. Steps run in slice order;
// a step whose precondition does not hold is skipped, not retried.
type effectStep struct {
	name string
	when func(o *Orchestrator) bool
	run  func(ctx context.Context, o *Orchestrator)
}

// effectPipeline is the fixed priority order. Legal reconciliation comes
// first because a version bump invalidates whatever the later steps would
// route to; the session starter is last and never navigates.
var effectPipeline = []effectStep{
	{
		name: "legal-version-bump",
		when: func(o *Orchestrator) bool {
			return o.AuthReady() && !o.legalChecked.Load()
		},
		run: func(ctx context.Context, o *Orchestrator) {
			// Latch before running: the check executes at most once per process
			// even when effects are re-run.
			if !o.legalChecked.CompareAndSwap(false, true) {
				return
			}
			snap := o.deps.Legal.Snapshot()
			if len(snap.Accepted) == 0 {
				// Nothing was ever accepted; first-run onboarding collects the
				// acceptances, so there is no cycle to invalidate.
				return
			}
			result := legal.CheckVersionBumps(snap, o.cfg.RequiredVersions)
			if !result.NeedsBlocking {
				return
			}
			o.logger.Info("legal version bump detected, forcing compliance reset",
				"stale_documents", result.StaleDocumentIDs)
			o.deps.AgeGate.Reset()
			o.deps.Legal.Reset()
			o.deps.Onboarding.Reset()
			o.metrics.IncComplianceReset()
			o.emitAudit(audit.Event{
				Action: audit.ActionComplianceReset,
				Detail: map[string]any{"stale_documents": result.StaleDocumentIDs},
			})
			o.routeTo(onboarding.PathAgeGate)
		},
	},
	{
		name: "onboarding-route",
		when: func(o *Orchestrator) bool {
			return o.AuthReady() && o.deps.Onboarding.NeedsOnboarding()
		},
		run: func(ctx context.Context, o *Orchestrator) {
			o.routeTo(onboarding.RouteFor(o.deps.Onboarding.Snapshot().CurrentStep))
		},
	},
	{
		name: "age-gate-session-start",
		when: func(o *Orchestrator) bool {
			snap := o.deps.AgeGate.Snapshot()
			return snap.Status == agegate.StatusVerified && snap.SessionID == ""
		},
		run: func(ctx context.Context, o *Orchestrator) {
			o.deps.AgeGate.StartSession()
		},
	},
}

// RunEffects evaluates the pipeline against current state. Safe to call
// again after state changes (consent answered, verification completed); the
// latch and the idempotent navigation make re-runs cheap no-ops when nothing
// changed.
func (o *Orchestrator) RunEffects(ctx context.Context) {
	o.effectMu.Lock()
	defer o.effectMu.Unlock()
	for _, step := range effectPipeline {
		if !step.when(o) {
			continue
		}
		o.logger.Debug("running startup effect", "effect", step.name)
		step.run(ctx, o)
	}
}

// routeTo issues a navigation replace unless the target is already current
// or the user sits on a screen that must not be yanked away (deep-linked
// auth surfaces).
func (o *Orchestrator) routeTo(path string) {
	current := o.deps.Router.Current()
	if current == path {
		return
	}
	if onboarding.IsExcludedPath(current) {
		o.logger.Debug("skipping navigation from excluded path", "current", current, "target", path)
		return
	}
	o.deps.Router.Replace(path)
	o.metrics.IncRoutingDecision(path)
}

// ConsentAnswered applies the user's modal decision: write it through the
// consent service, advance the onboarding flow past the consent step, and
// dismiss the prompt. The write error is returned so the UI can surface a
// retry, but the flow still advances; the runtime stays fail-closed until a
// later write confirms.
func (o *Orchestrator) ConsentAnswered(ctx context.Context, values consent.Values, meta consent.Meta) error {
	err := o.deps.Consent.SetConsents(ctx, values, meta)
	if err != nil {
		o.metrics.IncConsentWrite("persist_failed")
	} else {
		o.metrics.IncConsentWrite("persisted")
	}

	if o.deps.Onboarding.Snapshot().CurrentStep == onboarding.StepConsentModal {
		o.deps.Onboarding.Complete(onboarding.StepNotificationPrimer)
	}
	o.prompt.Dismiss()
	o.RunEffects(ctx)
	return err
}
