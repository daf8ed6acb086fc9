package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultivar/internal/agegate"
	"cultivar/internal/assess"
	"cultivar/internal/audit"
	"cultivar/internal/auth"
	"cultivar/internal/consent"
	"cultivar/internal/favorites"
	"cultivar/internal/feed"
	"cultivar/internal/i18n"
	"cultivar/internal/legal"
	"cultivar/internal/nav"
	"cultivar/internal/notify"
	"cultivar/internal/onboarding"
	"cultivar/internal/startup"
	"cultivar/internal/startup/metrics"
	"cultivar/internal/storage"
)

type testAPI struct {
	server    *httptest.Server
	router    *nav.Recorder
	ageGate   *agegate.Service
	scheduler *notify.LogScheduler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	backend := storage.NewInMemoryStore()
	recorder := nav.NewRecorder(onboarding.PathApp)
	scheduler := notify.NewLogScheduler(slog.Default())
	registry := consent.NewRegistry()
	registry.RegisterSDK("telemetry-sdk", consent.CategoryTelemetry, nil)
	required := legal.RequiredVersions{legal.DocTermsOfService: 1, legal.DocPrivacyPolicy: 1}

	authSvc := auth.NewService(backend, auth.NewTokenValidator("test-signing-key"))
	ageGate := agegate.NewService(backend, 21)
	legalSvc := legal.NewService(backend)
	machine := onboarding.NewMachine(backend)
	consentSvc := consent.NewService(backend, registry,
		audit.NewPublisher(audit.NewInMemoryStore()), "2025.2")

	orch, err := startup.New(
		startup.Config{RequiredVersions: required},
		startup.Deps{
			Auth:       authSvc,
			AgeGate:    ageGate,
			Legal:      legalSvc,
			Onboarding: machine,
			Consent:    consentSvc,
			Favorites:  favorites.NewService(backend),
			I18N:       i18n.NewCatalog("en-US", nil),
			Router:     recorder,
		},
		startup.WithMetrics(metrics.NewWith(prometheus.NewRegistry())),
	)
	require.NoError(t, err)
	require.NoError(t, orch.Run(context.Background()))

	handler := NewHandler(Deps{
		Orchestrator: orch,
		Auth:         authSvc,
		AgeGate:      ageGate,
		Legal:        legalSvc,
		Onboarding:   machine,
		Consent:      consentSvc,
		Feed:         feed.NewFilter(nil),
		Assessments:  assess.NewQueue(backend),
		Router:       recorder,
		Notifier:     scheduler,
		Required:     required,
	}, nil)

	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return &testAPI{server: server, router: recorder, ageGate: ageGate, scheduler: scheduler}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func TestReadinessEndpoint(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodGet, "/startup/readiness", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["authReady"])
	assert.Equal(t, true, body["i18nReady"])
	assert.Equal(t, true, body["ready"])
}

func TestRouteReflectsFreshInstall(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodGet, "/startup/route", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, onboarding.PathAgeGate, body["path"])
}

func TestAgeGateVerifyAdvancesOnboarding(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/agegate/verify", `{"birthDate":"1995-06-01"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(agegate.StatusVerified), body["status"])

	resp, body = api.do(t, http.MethodGet, "/onboarding/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(onboarding.StepLegalConfirmation), body["currentStep"])
}

func TestAgeGateVerifyRejectsUnderage(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/agegate/verify", `{"birthDate":"2015-06-01"}`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, agegate.StatusUnverified, api.ageGate.Snapshot().Status)
}

func TestAgeGateVerifyRejectsMalformedDate(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodPost, "/agegate/verify", `{"birthDate":"not-a-date"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLegalAcceptAdvancesToConsent(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/agegate/verify", `{"birthDate":"1995-06-01"}`)

	resp, _ := api.do(t, http.MethodPost, "/legal/accept", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := api.do(t, http.MethodGet, "/legal/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["needsBlocking"])

	_, onboardingBody := api.do(t, http.MethodGet, "/onboarding/", "")
	assert.Equal(t, string(onboarding.StepConsentModal), onboardingBody["currentStep"])
}

func TestConsentAnswerRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodGet, "/consents/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["required"])
	assert.Equal(t, true, body["promptVisible"])

	resp, _ = api.do(t, http.MethodPost, "/consents/",
		`{"values":{"telemetry":true},"meta":{"region":"US-CA","uiSurface":"consent-modal"}}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = api.do(t, http.MethodGet, "/consents/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["required"])
	assert.Equal(t, true, body["persistConfirmed"])
	assert.Equal(t, false, body["promptVisible"])
}

func TestNotificationPrimerCompletionRequestsPermissions(t *testing.T) {
	api := newTestAPI(t)

	// Walk the flow up to the notification primer.
	api.do(t, http.MethodPost, "/agegate/verify", `{"birthDate":"1995-06-01"}`)
	api.do(t, http.MethodPost, "/legal/accept", "")
	assert.Equal(t, int64(0), api.scheduler.PermissionRequests())
	api.do(t, http.MethodPost, "/consents/",
		`{"values":{"telemetry":true},"meta":{"region":"US-CA","uiSurface":"consent-modal"}}`)

	_, body := api.do(t, http.MethodGet, "/onboarding/", "")
	require.Equal(t, string(onboarding.StepNotificationPrimer), body["currentStep"])
	assert.Equal(t, int64(0), api.scheduler.PermissionRequests())

	// Leaving the primer is the one moment the permission prompt fires.
	resp, body := api.do(t, http.MethodPost, "/onboarding/steps/camera-primer/complete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["advanced"])
	assert.Equal(t, int64(1), api.scheduler.PermissionRequests())

	// Replays and later completions do not re-prompt.
	api.do(t, http.MethodPost, "/onboarding/steps/camera-primer/complete", "")
	api.do(t, http.MethodPost, "/onboarding/steps/completed/complete", "")
	assert.Equal(t, int64(1), api.scheduler.PermissionRequests())
}

func TestFeedVisibleFiltersForUnverifiedViewer(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/feed/visible",
		`{"region":"US-CA","items":[{"id":"a"},{"id":"b","ageRestricted":true}]}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].(map[string]any)["id"])
}

func TestAssessmentCaptureAndList(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/assessments/",
		`{"plantId":"plant-1","notes":"leaf curl"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, body["id"])

	resp, listBody := api.do(t, http.MethodGet, "/assessments/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := listBody["pending"].([]any)
	require.Len(t, pending, 1)
	assert.Equal(t, "plant-1", pending[0].(map[string]any)["plantId"])
}

func TestAssessmentCaptureRequiresPlantID(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodPost, "/assessments/", `{"notes":"no plant"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get(api.server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}
