// Package startup sequences every launch: hydrate the persisted state
// machines with bounded timeouts, reconcile legal versions, derive one
// routing decision, and flip the readiness flags the boot splash keys off.
//
// The guarantees that matter:
//
//   - AuthReady always eventually flips true, via success or the
//     timeout/cleanup path; the splash cannot hang forever.
//   - Auth hydration strictly precedes the dependent hydrations, which then
//     fan out concurrently.
//   - Routing effects run as an explicit ordered pipeline; each step
//     declares its precondition and no-ops when it does not hold, so the
//     steps compose without knowing about each other.
//   - The legal version check latches after one execution per process.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/sync/errgroup"

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
	"cultivar/internal/startup/hydrator"
	"cultivar/internal/startup/metrics"
)

// Config carries the tunables the orchestrator needs.
type Config struct {
	AuthHydrationTimeout time.Duration
	TimezonePollInterval time.Duration
	RequiredVersions     legal.RequiredVersions
}

// Deps are the collaborators. All are required except Favorites, Notifier,
// ResolveTimezone, and AuditInbox.
type Deps struct {
	Auth       *auth.Service
	AgeGate    *agegate.Service
	Legal      *legal.Service
	Onboarding *onboarding.Machine
	Consent    *consent.Service
	Favorites  *favorites.Service
	I18N       i18n.Engine
	Router     nav.Router
	Notifier   notify.Scheduler

	// ResolveTimezone snapshots the device timezone for the poller.
	ResolveTimezone func() string

	// AuditInbox receives informational events; sends never block.
	AuditInbox chan<- audit.Event
}

// Orchestrator is the single place the launch sequence lives.
type Orchestrator struct {
	cfg  Config
	deps Deps

	guard   *hydrator.Guard
	prompt  *consent.PromptController
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	i18nReady    atomic.Bool
	authReady    atomic.Bool
	splashHidden atomic.Bool
	legalChecked atomic.Bool

	onSplashHide func()

	effectMu sync.Mutex
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithGuard(g *hydrator.Guard) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.guard = g
		}
	}
}

// WithSplashHide registers the UI hook that hides the boot splash. Invoked
// exactly once, when both readiness flags are set.
func WithSplashHide(hide func()) Option {
	return func(o *Orchestrator) {
		o.onSplashHide = hide
	}
}

func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.AgeGate == nil {
		return nil, fmt.Errorf("age gate service is required")
	}
	if deps.Legal == nil {
		return nil, fmt.Errorf("legal service is required")
	}
	if deps.Onboarding == nil {
		return nil, fmt.Errorf("onboarding machine is required")
	}
	if deps.Consent == nil {
		return nil, fmt.Errorf("consent service is required")
	}
	if deps.I18N == nil {
		return nil, fmt.Errorf("i18n engine is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("navigation router is required")
	}
	if cfg.AuthHydrationTimeout <= 0 {
		cfg.AuthHydrationTimeout = hydrator.DefaultAuthTimeout
	}

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		guard:  hydrator.New(),
		prompt: consent.NewPromptController(),
		logger: slog.Default(),
		tracer: otel.Tracer("cultivar/startup"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// I18NReady reports whether translations settled (success or degraded).
func (o *Orchestrator) I18NReady() bool { return o.i18nReady.Load() }

// AuthReady reports whether auth hydration settled (success or fallback).
func (o *Orchestrator) AuthReady() bool { return o.authReady.Load() }

// Ready gates the initial render: the splash stays up while false.
func (o *Orchestrator) Ready() bool { return o.I18NReady() && o.AuthReady() }

// ConsentPrompt is the present/dismiss handle for the consent modal surface.
func (o *Orchestrator) ConsentPrompt() *consent.PromptController { return o.prompt }

// Run executes the launch sequence. It returns once both readiness flags
// are set and the routing decision has been applied; the timezone poller
// keeps running until ctx is cancelled. Hydration failures are non-fatal by
// design - the returned error only reports a broken precondition such as a
// cancelled context.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "startup.run")
	defer span.End()
	started := time.Now()

	// i18n is independent of auth; run it alongside the race.
	var i18nWait sync.WaitGroup
	i18nWait.Add(1)
	go func() {
		defer i18nWait.Done()
		o.initI18N(ctx)
	}()

	// Auth must settle before anything that may reference the resolved user.
	o.hydrateAuth(ctx)

	// Dependent hydrations fan out; each store degrades to defaults on its
	// own, so failures are logged and startup proceeds.
	o.hydrateDependents(ctx)

	o.RunEffects(ctx)

	if o.deps.Consent.IsConsentRequired() {
		o.prompt.Present()
	}

	i18nWait.Wait()
	o.maybeHideSplash()
	o.metrics.ObserveStartupDuration(time.Since(started))
	span.SetAttributes(
		attribute.Bool("startup.auth_ready", o.AuthReady()),
		attribute.Bool("startup.i18n_ready", o.I18NReady()),
	)
	o.emitAudit(audit.Event{
		Action: audit.ActionStartupSettled,
		Detail: map[string]any{"duration_ms": time.Since(started).Milliseconds()},
	})

	if o.cfg.TimezonePollInterval > 0 && o.deps.Notifier != nil && o.deps.ResolveTimezone != nil {
		poller := NewTimezonePoller(o.cfg.TimezonePollInterval, o.deps.ResolveTimezone, o.deps.Notifier,
			WithPollerLogger(o.logger), WithPollerMetrics(o.metrics))
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("timezone poller stopped", "error", err)
			}
		}()
	}

	return ctx.Err()
}

func (o *Orchestrator) initI18N(ctx context.Context) {
	ctx, span := o.tracer.Start(ctx, "startup.i18n")
	defer span.End()
	if err := o.deps.I18N.Init(ctx); err != nil {
		// Non-fatal: the app renders raw translation keys instead of blocking.
		o.logger.Warn("i18n init failed, rendering raw keys", "error", err)
	} else {
		o.deps.I18N.ApplyDirectionIfNeeded()
	}
	o.i18nReady.Store(true)
}

func (o *Orchestrator) hydrateAuth(ctx context.Context) {
	ctx, span := o.tracer.Start(ctx, "startup.hydrate.auth")
	defer span.End()
	outcome, err := o.guard.Race(ctx, "auth",
		o.deps.Auth.Hydrate,
		o.cfg.AuthHydrationTimeout,
		o.deps.Auth.ClearAuthStorage,
	)
	if err != nil {
		o.logger.Error("auth cleanup failed", "error", err)
	}
	o.metrics.IncHydrationOutcome("auth", string(outcome))
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	o.authReady.Store(true)
}

func (o *Orchestrator) hydrateDependents(ctx context.Context) {
	ctx, span := o.tracer.Start(ctx, "startup.hydrate.dependents")
	defer span.End()

	type task struct {
		name    string
		hydrate func(context.Context) error
	}
	tasks := []task{
		{"agegate", o.deps.AgeGate.Hydrate},
		{"legal", o.deps.Legal.Hydrate},
		{"onboarding", o.deps.Onboarding.Hydrate},
		{"consent", o.deps.Consent.Hydrate},
	}
	if o.deps.Favorites != nil {
		tasks = append(tasks, task{"favorites", o.deps.Favorites.Hydrate})
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			if err := t.hydrate(ctx); err != nil {
				// The store already fell back to its default.
				o.logger.Warn("hydration degraded to defaults", "store", t.name, "error", err)
				o.metrics.IncHydrationOutcome(t.name, string(hydrator.OutcomeFailed))
				return nil
			}
			o.metrics.IncHydrationOutcome(t.name, string(hydrator.OutcomeHydrated))
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) maybeHideSplash() {
	if !o.Ready() {
		return
	}
	// Idempotent guard against double-hide.
	if !o.splashHidden.CompareAndSwap(false, true) {
		return
	}
	if o.onSplashHide != nil {
		o.onSplashHide()
	}
}

func (o *Orchestrator) emitAudit(event audit.Event) {
	if o.deps.AuditInbox == nil {
		return
	}
	select {
	case o.deps.AuditInbox <- event:
	default:
		// Informational trail only; never block startup on a full inbox.
		o.logger.Warn("audit inbox full, dropping event", "action", event.Action)
	}
}
