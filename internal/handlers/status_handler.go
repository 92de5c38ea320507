package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"arc-backend/internal/integrations"
	"arc-backend/internal/models"
	"arc-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

// ProviderStatus is satisfied by the provider dispatcher.
type ProviderStatus interface {
	LastTried() models.LastTried
	Status() []models.ProviderStatus
}

// IntegrationChecker is satisfied by the integrations registry.
type IntegrationChecker interface {
	CheckAll(ctx context.Context) []models.IntegrationStatus
	Check(ctx context.Context, name string) (models.IntegrationStatus, error)
}

type StatusHandler struct {
	providers    ProviderStatus
	integrations IntegrationChecker
}

// NewStatusHandler creates the handler. integrations may be nil.
func NewStatusHandler(providers ProviderStatus, integrations IntegrationChecker) *StatusHandler {
	return &StatusHandler{providers: providers, integrations: integrations}
}

// HandleHealth handles GET /health.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePing handles GET /ping.
func (h *StatusHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "ts": time.Now().UnixMilli()})
}

// HandleLastTried handles GET /v1/status/last-tried.
func (h *StatusHandler) HandleLastTried(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.providers.LastTried())
}

// HandleProviders handles GET /v1/status/providers. Keys are reported as present or not, never echoed.
func (h *StatusHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.ProvidersResponse{Providers: h.providers.Status()})
}

// HandleIntegrations handles GET /v1/status/integrations.
func (h *StatusHandler) HandleIntegrations(w http.ResponseWriter, r *http.Request) {
	resp := models.IntegrationsResponse{Integrations: []models.IntegrationStatus{}}
	if h.integrations != nil {
		resp.Integrations = h.integrations.CheckAll(r.Context())
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleIntegration handles GET /v1/status/integrations/{name}.
func (h *StatusHandler) HandleIntegration(w http.ResponseWriter, r *http.Request) {
	if h.integrations == nil {
		httputil.RespondError(w, http.StatusNotFound, "Unknown integration")
		return
	}
	status, err := h.integrations.Check(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, integrations.ErrUnknownIntegration) {
			httputil.RespondError(w, http.StatusNotFound, "Unknown integration")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Integration check failed")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, status)
}
