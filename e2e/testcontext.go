// Package e2e drives the assembled core through its startup scenarios with
// godog. Everything runs in-process against the in-memory backend; no
// network or platform surface is involved.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cultivar/internal/agegate"
	"cultivar/internal/audit"
	"cultivar/internal/auth"
	"cultivar/internal/consent"
	"cultivar/internal/favorites"
	"cultivar/internal/i18n"
	"cultivar/internal/legal"
	"cultivar/internal/nav"
	"cultivar/internal/notify"
	"cultivar/internal/onboarding"
	"cultivar/internal/startup"
	"cultivar/internal/storage"
)

// TestContext assembles a fresh core per scenario and exposes the handles
// the step definitions drive.
type TestContext struct {
	backend  *storage.InMemoryStore
	registry *consent.Registry
	required legal.RequiredVersions

	authSvc    *auth.Service
	ageGate    *agegate.Service
	legalSvc   *legal.Service
	machine    *onboarding.Machine
	consentSvc *consent.Service

	router    *nav.Recorder
	scheduler *notify.LogScheduler
	timezone  string
	ticks     chan time.Time

	orch   *startup.Orchestrator
	cancel context.CancelFunc
}

func NewTestContext() *TestContext {
	tc := &TestContext{}
	tc.Reset()
	return tc
}

// Reset rebuilds all state; called before every scenario.
func (tc *TestContext) Reset() {
	if tc.cancel != nil {
		tc.cancel()
	}
	tc.backend = storage.NewInMemoryStore()
	tc.registry = consent.NewRegistry()
	tc.required = legal.RequiredVersions{
		legal.DocTermsOfService: 1,
		legal.DocPrivacyPolicy:  1,
	}
	tc.router = nav.NewRecorder(onboarding.PathApp)
	tc.scheduler = notify.NewLogScheduler(slog.Default())
	tc.timezone = "America/Los_Angeles"
	tc.ticks = make(chan time.Time)
	tc.orch = nil
	tc.cancel = nil
}

// Seed writes a persisted state envelope directly into the backend,
// simulating what a previous session left behind.
func (tc *TestContext) Seed(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	envelope, err := json.Marshal(map[string]any{
		"schemaVersion": 1,
		"value":         json.RawMessage(raw),
	})
	if err != nil {
		return err
	}
	return tc.backend.Set(context.Background(), key, envelope)
}

// Start builds the services over the seeded backend and runs the startup
// sequence to completion. The timezone poller runs against an injected tick
// channel so scenarios can advance it deterministically.
func (tc *TestContext) Start() error {
	tc.authSvc = auth.NewService(tc.backend, auth.NewTokenValidator("e2e-signing-key"))
	tc.ageGate = agegate.NewService(tc.backend, 21)
	tc.legalSvc = legal.NewService(tc.backend)
	tc.machine = onboarding.NewMachine(tc.backend)
	tc.consentSvc = consent.NewService(tc.backend, tc.registry,
		audit.NewPublisher(audit.NewInMemoryStore()), "2025.2")

	orch, err := startup.New(
		startup.Config{RequiredVersions: tc.required},
		startup.Deps{
			Auth:       tc.authSvc,
			AgeGate:    tc.ageGate,
			Legal:      tc.legalSvc,
			Onboarding: tc.machine,
			Consent:    tc.consentSvc,
			Favorites:  favorites.NewService(tc.backend),
			I18N:       i18n.NewCatalog("en-US", nil),
			Router:     tc.router,
			Notifier:   tc.scheduler,
		},
	)
	if err != nil {
		return err
	}
	tc.orch = orch

	ctx, cancel := context.WithCancel(context.Background())
	tc.cancel = cancel
	if err := orch.Run(ctx); err != nil {
		return err
	}

	poller := startup.NewTimezonePoller(time.Minute,
		func() string { return tc.timezone },
		tc.scheduler,
		startup.WithTicker(func(time.Duration) (<-chan time.Time, func()) {
			return tc.ticks, func() {}
		}),
	)
	go func() { _ = poller.Run(ctx) }()
	return nil
}

func (tc *TestContext) requireStarted() error {
	if tc.orch == nil {
		return fmt.Errorf("the app has not been started in this scenario")
	}
	return nil
}
