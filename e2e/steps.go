package e2e

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"cultivar/internal/agegate"
	"cultivar/internal/consent"
	"cultivar/internal/legal"
	"cultivar/internal/onboarding"
)

// RegisterSteps binds all step definitions to the shared TestContext.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})

	sc.Step(`^a fresh install$`, tc.stepFreshInstall)
	sc.Step(`^a returning user who completed onboarding$`, tc.stepReturningCompletedUser)
	sc.Step(`^the user accepted ([\w-]+) version (\d+)$`, tc.stepAcceptedDocVersion)
	sc.Step(`^the required ([\w-]+) version is (\d+)$`, tc.stepRequiredDocVersion)
	sc.Step(`^an SDK "([^"]*)" registered under "([^"]*)"$`, tc.stepRegisterSDK)

	sc.Step(`^the app starts$`, tc.stepAppStarts)
	sc.Step(`^the user grants telemetry consent$`, tc.stepGrantTelemetry)
	sc.Step(`^the user denies all consent$`, tc.stepDenyAll)
	sc.Step(`^the device timezone changes to "([^"]*)"$`, tc.stepTimezoneChanges)

	sc.Step(`^the route is "([^"]*)"$`, tc.stepRouteIs)
	sc.Step(`^no navigation was issued$`, tc.stepNoNavigation)
	sc.Step(`^the core is ready$`, tc.stepCoreReady)
	sc.Step(`^the age gate is unverified$`, tc.stepAgeGateUnverified)
	sc.Step(`^the consent prompt is visible$`, tc.stepConsentPromptVisible)
	sc.Step(`^the consent prompt is hidden$`, tc.stepConsentPromptHidden)
	sc.Step(`^telemetry is allowed$`, tc.stepTelemetryAllowed)
	sc.Step(`^telemetry is not allowed$`, tc.stepTelemetryNotAllowed)
	sc.Step(`^notifications are replanned (\d+) times?$`, tc.stepReplanCount)
}

func (tc *TestContext) stepFreshInstall() error {
	// Reset already left the backend empty.
	return nil
}

func (tc *TestContext) stepReturningCompletedUser() error {
	if err := tc.Seed("onboarding", onboarding.State{
		Status:      onboarding.StatusCompleted,
		CurrentStep: onboarding.StepCompleted,
		Version:     3,
	}); err != nil {
		return err
	}
	accepted := map[string]legal.Acceptance{}
	for docID, version := range tc.required {
		accepted[docID] = legal.Acceptance{AcceptedVersion: version, AcceptedAt: time.Now()}
	}
	if err := tc.Seed("legal", legal.State{Accepted: accepted}); err != nil {
		return err
	}
	return tc.Seed("agegate", agegate.State{
		Status:     agegate.StatusVerified,
		SessionID:  "session-e2e",
		VerifiedAt: time.Now(),
	})
}

func (tc *TestContext) stepAcceptedDocVersion(docID string, version int) error {
	return tc.Seed("legal", legal.State{Accepted: map[string]legal.Acceptance{
		docID: {AcceptedVersion: version, AcceptedAt: time.Now()},
	}})
}

func (tc *TestContext) stepRequiredDocVersion(docID string, version int) error {
	tc.required[docID] = version
	return nil
}

func (tc *TestContext) stepRegisterSDK(name, category string) error {
	tc.registry.RegisterSDK(name, consent.Category(category), nil)
	return nil
}

func (tc *TestContext) stepAppStarts() error {
	return tc.Start()
}

func (tc *TestContext) stepGrantTelemetry() error {
	if err := tc.requireStarted(); err != nil {
		return err
	}
	return tc.orch.ConsentAnswered(context.Background(),
		consent.Values{Telemetry: true},
		consent.Meta{Region: "US-CA", UISurface: "consent-modal"})
}

func (tc *TestContext) stepDenyAll() error {
	if err := tc.requireStarted(); err != nil {
		return err
	}
	return tc.orch.ConsentAnswered(context.Background(),
		consent.Values{},
		consent.Meta{Region: "US-CA", UISurface: "consent-modal"})
}

func (tc *TestContext) stepTimezoneChanges(timezone string) error {
	if err := tc.requireStarted(); err != nil {
		return err
	}
	tc.timezone = timezone
	tc.ticks <- time.Now()

	// The re-plan happens after the tick is consumed; give the poller a
	// bounded window to act.
	deadline := time.Now().Add(2 * time.Second)
	for tc.scheduler.Rehydrates() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (tc *TestContext) stepRouteIs(path string) error {
	if err := tc.requireStarted(); err != nil {
		return err
	}
	if current := tc.router.Current(); current != path {
		return fmt.Errorf("expected route %q, got %q", path, current)
	}
	return nil
}

func (tc *TestContext) stepNoNavigation() error {
	if replaces := tc.router.Replaces(); len(replaces) != 0 {
		return fmt.Errorf("expected no navigation, got %v", replaces)
	}
	return nil
}

func (tc *TestContext) stepCoreReady() error {
	if err := tc.requireStarted(); err != nil {
		return err
	}
	if !tc.orch.Ready() {
		return fmt.Errorf("core not ready: authReady=%v i18nReady=%v",
			tc.orch.AuthReady(), tc.orch.I18NReady())
	}
	return nil
}

func (tc *TestContext) stepAgeGateUnverified() error {
	if snap := tc.ageGate.Snapshot(); snap.Status != agegate.StatusUnverified {
		return fmt.Errorf("expected unverified age gate, got %q", snap.Status)
	}
	return nil
}

func (tc *TestContext) stepConsentPromptVisible() error {
	if !tc.orch.ConsentPrompt().Visible() {
		return fmt.Errorf("expected consent prompt to be visible")
	}
	return nil
}

func (tc *TestContext) stepConsentPromptHidden() error {
	if tc.orch.ConsentPrompt().Visible() {
		return fmt.Errorf("expected consent prompt to be hidden")
	}
	return nil
}

func (tc *TestContext) stepTelemetryAllowed() error {
	if !tc.consentSvc.Allowed(consent.CategoryTelemetry) {
		return fmt.Errorf("expected telemetry to be allowed")
	}
	return nil
}

func (tc *TestContext) stepTelemetryNotAllowed() error {
	if tc.consentSvc.Allowed(consent.CategoryTelemetry) {
		return fmt.Errorf("expected telemetry to be gated off")
	}
	return nil
}

func (tc *TestContext) stepReplanCount(count int) error {
	if got := tc.scheduler.Rehydrates(); got != int64(count) {
		return fmt.Errorf("expected %d notification replans, got %d", count, got)
	}
	return nil
}
