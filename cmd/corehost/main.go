// corehost runs the companion-app core as a loopback service: it owns the
// persisted compliance state machines, executes the startup sequence, and
// exposes the API the UI layer drives.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cultivar/internal/agegate"
	"cultivar/internal/assess"
	"cultivar/internal/audit"
	"cultivar/internal/auth"
	"cultivar/internal/consent"
	"cultivar/internal/favorites"
	"cultivar/internal/feed"
	"cultivar/internal/i18n"
	"cultivar/internal/legal"
	"cultivar/internal/locale"
	"cultivar/internal/nav"
	"cultivar/internal/notify"
	"cultivar/internal/onboarding"
	"cultivar/internal/platform/config"
	"cultivar/internal/platform/httpserver"
	"cultivar/internal/platform/logger"
	platformredis "cultivar/internal/platform/redis"
	"cultivar/internal/startup"
	startupmetrics "cultivar/internal/startup/metrics"
	"cultivar/internal/storage"
	httptransport "cultivar/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStorage(cfg)
	if err != nil {
		log.Error("open storage backend", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	required := legal.DefaultRequiredVersions()
	if cfg.LegalPolicyPath != "" {
		required, err = legal.LoadRequiredVersions(cfg.LegalPolicyPath)
		if err != nil {
			log.Error("load legal policy", "path", cfg.LegalPolicyPath, "error", err)
			os.Exit(1)
		}
	}

	// Gated SDKs register before startup so the consent requirement is known
	// when the orchestrator checks it.
	registry := consent.NewRegistry()
	registry.RegisterSDK("crash-reporter", consent.CategoryCrashDiagnostics, []string{"crash.example.com"})
	registry.RegisterSDK("product-analytics", consent.CategoryTelemetry, []string{"analytics.example.com"})
	registry.RegisterSDK("experiments", consent.CategoryExperiments, []string{"flags.example.com"})

	inbox := make(chan audit.Event, 64)
	publisher := audit.NewPublisher(audit.NewKVStore(backend))
	worker := audit.NewWorker(publisher, inbox, audit.WithWorkerLogger(log))
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	authSvc := auth.NewService(backend, auth.NewTokenValidator(cfg.JWTSigningKey), auth.WithLogger(log))
	ageGate := agegate.NewService(backend, cfg.MinimumAge, agegate.WithLogger(log))
	legalSvc := legal.NewService(backend, legal.WithLogger(log))
	machine := onboarding.NewMachine(backend, onboarding.WithLogger(log))
	consentSvc := consent.NewService(backend, registry, publisher, cfg.ConsentPolicyVersion,
		consent.WithLogger(log))
	favoritesSvc := favorites.NewService(backend)

	router := nav.NewRecorder(onboarding.PathApp)
	scheduler := notify.NewLogScheduler(log)
	tzResolver := locale.NewResolver(locale.Sources{
		Raw: func() string { return time.Now().Location().String() },
	}, locale.WithLogger(log))

	orch, err := startup.New(
		startup.Config{
			AuthHydrationTimeout: cfg.AuthHydrationTimeout,
			TimezonePollInterval: cfg.TimezonePollInterval,
			RequiredVersions:     required,
		},
		startup.Deps{
			Auth:            authSvc,
			AgeGate:         ageGate,
			Legal:           legalSvc,
			Onboarding:      machine,
			Consent:         consentSvc,
			Favorites:       favoritesSvc,
			I18N:            i18n.NewCatalog(cfg.Locale, nil),
			Router:          router,
			Notifier:        scheduler,
			ResolveTimezone: tzResolver.Timezone,
			AuditInbox:      inbox,
		},
		startup.WithLogger(log),
		startup.WithMetrics(startupmetrics.New()),
		startup.WithSplashHide(func() { log.Info("splash hidden, core ready") }),
	)
	if err != nil {
		log.Error("build startup orchestrator", "error", err)
		os.Exit(1)
	}

	// Gated SDKs initialize at most once per process, and only after a
	// durably-confirmed consent grant.
	initState := startup.NewInitState()
	startAllowedSDKs := func() {
		for _, sdk := range registry.SDKs() {
			if !consentSvc.Allowed(sdk.Category) {
				continue
			}
			if initState.MarkInitialized(sdk.Name) {
				log.Info("sdk initialized", "sdk", sdk.Name, "category", sdk.Category)
			}
		}
	}

	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("startup sequence error", "error", err)
			return
		}
		startAllowedSDKs()
	}()

	assessQueue := assess.NewQueue(backend)
	syncer := assess.NewSyncer(assessQueue, assess.NewLogUploader(log), assess.WithSyncerLogger(log))
	go func() {
		if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("assessment syncer stopped", "error", err)
		}
	}()

	handler := httptransport.NewHandler(httptransport.Deps{
		Orchestrator: orch,
		Auth:         authSvc,
		AgeGate:      ageGate,
		Legal:        legalSvc,
		Onboarding:   machine,
		Consent:      consentSvc,
		Feed:         feed.NewFilter(nil, feed.WithLogger(log)),
		Assessments:  assessQueue,
		Router:       router,
		Notifier:     scheduler,
		Required:     required,
	}, log)

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))
	log.Info("corehost listening", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func openStorage(cfg config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewInMemoryStore(), nil
	case config.BackendRedis:
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(client), nil
	default:
		return storage.NewBadgerStore(storage.BadgerConfig{
			Path: cfg.StoragePath,
		})
	}
}
