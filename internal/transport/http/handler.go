// Package httptransport exposes the embedded core over a loopback HTTP API.
// The UI layer drives startup, compliance screens, and content filtering
// through these endpoints; handlers stay thin and delegate to the domain
// services.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cultivar/internal/agegate"
	"cultivar/internal/assess"
	"cultivar/internal/auth"
	"cultivar/internal/consent"
	"cultivar/internal/feed"
	"cultivar/internal/legal"
	"cultivar/internal/nav"
	"cultivar/internal/notify"
	"cultivar/internal/onboarding"
	"cultivar/internal/startup"
	"cultivar/pkg/domainerrors"
)

// Handler wires the domain services to their endpoints.
type Handler struct {
	orch        *startup.Orchestrator
	auth        *auth.Service
	ageGate     *agegate.Service
	legal       *legal.Service
	onboarding  *onboarding.Machine
	consent     *consent.Service
	feed        *feed.Filter
	assessments *assess.Queue
	router      nav.Router
	notifier    notify.Scheduler
	required    legal.RequiredVersions
	logger      *slog.Logger
}

// Deps collects the handler's collaborators.
type Deps struct {
	Orchestrator *startup.Orchestrator
	Auth         *auth.Service
	AgeGate      *agegate.Service
	Legal        *legal.Service
	Onboarding   *onboarding.Machine
	Consent      *consent.Service
	Feed         *feed.Filter
	Assessments  *assess.Queue
	Router       nav.Router
	Notifier     notify.Scheduler
	Required     legal.RequiredVersions
}

func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orch:        deps.Orchestrator,
		auth:        deps.Auth,
		ageGate:     deps.AgeGate,
		legal:       deps.Legal,
		onboarding:  deps.Onboarding,
		consent:     deps.Consent,
		feed:        deps.Feed,
		assessments: deps.Assessments,
		router:      deps.Router,
		notifier:    deps.Notifier,
		required:    deps.Required,
		logger:      logger,
	}
}

// NewRouter builds the loopback API router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/startup", func(r chi.Router) {
		r.Get("/readiness", h.handleReadiness)
		r.Get("/route", h.handleRoute)
		r.Post("/effects", h.handleRunEffects)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signin", h.handleSignIn)
		r.Post("/signout", h.handleSignOut)
	})

	r.Route("/agegate", func(r chi.Router) {
		r.Get("/", h.handleAgeGateStatus)
		r.Post("/verify", h.handleAgeGateVerify)
	})

	r.Route("/legal", func(r chi.Router) {
		r.Get("/", h.handleLegalStatus)
		r.Post("/accept", h.handleLegalAccept)
	})

	r.Route("/onboarding", func(r chi.Router) {
		r.Get("/", h.handleOnboardingStatus)
		r.Post("/begin", h.handleOnboardingBegin)
		r.Post("/steps/{step}/complete", h.handleOnboardingComplete)
	})

	r.Route("/consents", func(r chi.Router) {
		r.Get("/", h.handleConsentStatus)
		r.Post("/", h.handleConsentAnswer)
	})

	r.Post("/feed/visible", h.handleFeedVisible)

	r.Route("/assessments", func(r chi.Router) {
		r.Get("/", h.handleAssessmentList)
		r.Post("/", h.handleAssessmentCapture)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"authReady": h.orch.AuthReady(),
		"i18nReady": h.orch.I18NReady(),
		"ready":     h.orch.Ready(),
	})
}

func (h *Handler) handleRoute(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":           h.router.Current(),
		"consentVisible": h.orch.ConsentPrompt().Visible(),
	})
}

// handleRunEffects re-evaluates the routing pipeline; the UI calls this
// after state changes that happen outside the core's own endpoints.
func (h *Handler) handleRunEffects(w http.ResponseWriter, r *http.Request) {
	h.orch.RunEffects(r.Context())
	h.handleRoute(w, r)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "token is required"))
		return
	}
	h.auth.SignIn(req.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	h.auth.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAgeGateStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ageGate.Snapshot())
}

func (h *Handler) handleAgeGateVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BirthDate string `json:"birthDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "birthDate must be YYYY-MM-DD"))
		return
	}
	if err := h.ageGate.Verify(birthDate); err != nil {
		h.logger.Warn("age verification rejected", "error", err)
		writeError(w, err)
		return
	}
	h.onboarding.Complete(onboarding.StepLegalConfirmation)
	h.orch.RunEffects(r.Context())
	writeJSON(w, http.StatusOK, h.ageGate.Snapshot())
}

func (h *Handler) handleLegalStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.legal.Snapshot()
	result := legal.CheckVersionBumps(snap, h.required)
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":       snap.Accepted,
		"required":       h.required,
		"needsBlocking":  result.NeedsBlocking,
		"staleDocuments": result.StaleDocumentIDs,
	})
}

// handleLegalAccept records the bundle acceptance from the legal
// confirmation screen and advances onboarding past it.
func (h *Handler) handleLegalAccept(w http.ResponseWriter, r *http.Request) {
	h.legal.AcceptAll(h.required)
	h.onboarding.Complete(onboarding.StepConsentModal)
	h.orch.RunEffects(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.onboarding.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      snap.Status,
		"currentStep": snap.CurrentStep,
		"route":       onboarding.RouteFor(snap.CurrentStep),
	})
}

func (h *Handler) handleOnboardingBegin(w http.ResponseWriter, _ *http.Request) {
	h.onboarding.Begin()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	step := onboarding.Step(chi.URLParam(r, "step"))
	before := h.onboarding.Snapshot()
	h.onboarding.Complete(step)
	after := h.onboarding.Snapshot()

	// Leaving the notification primer is the moment the user agreed to be
	// asked; failure is logged, the flow still advances.
	if before.CurrentStep == onboarding.StepNotificationPrimer &&
		after.CurrentStep != before.CurrentStep && h.notifier != nil {
		if err := h.notifier.RequestPermissions(r.Context()); err != nil {
			h.logger.Warn("notification permission request failed", "error", err)
		}
	}
	h.orch.RunEffects(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"advanced":    before.CurrentStep != after.CurrentStep,
		"status":      after.Status,
		"currentStep": after.CurrentStep,
	})
}

func (h *Handler) handleConsentStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.consent.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"required":         h.consent.IsConsentRequired(),
		"acquired":         snap.Acquired,
		"persistConfirmed": snap.PersistConfirmed,
		"values":           snap.Values,
		"promptVisible":    h.orch.ConsentPrompt().Visible(),
	})
}

func (h *Handler) handleConsentAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Values consent.Values `json:"values"`
		Meta   consent.Meta   `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := h.orch.ConsentAnswered(r.Context(), req.Values, req.Meta); err != nil {
		h.logger.Error("consent decision not durably persisted", "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFeedVisible(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Region string      `json:"region"`
		Items  []feed.Item `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}
	viewer := feed.Viewer{
		AgeVerified: h.ageGate.Snapshot().Status == agegate.StatusVerified,
		Region:      req.Region,
	}
	visible, err := h.feed.Visible(r.Context(), viewer, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": visible})
}

func (h *Handler) handleAssessmentList(w http.ResponseWriter, r *http.Request) {
	pending, err := h.assessments.Pending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (h *Handler) handleAssessmentCapture(w http.ResponseWriter, r *http.Request) {
	var req assess.Assessment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}
	queued, err := h.enqueueAssessment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queued)
}

func (h *Handler) enqueueAssessment(ctx context.Context, a assess.Assessment) (assess.Assessment, error) {
	queued, err := h.assessments.Enqueue(ctx, a)
	if err != nil {
		if a.PlantID == "" {
			return assess.Assessment{}, domainerrors.New(domainerrors.CodeInvalidInput, "plantId is required")
		}
		return assess.Assessment{}, domainerrors.Wrap(domainerrors.CodeInternal, "queue assessment", err)
	}
	return queued, nil
}
