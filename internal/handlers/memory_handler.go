package handlers

import (
	"context"
	"errors"
	"net/http"

	"arc-backend/internal/models"
	"arc-backend/internal/services"
	"arc-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MemoryService defines the interface expected from the memory service.
type MemoryService interface {
	AddFact(ctx context.Context, content string) (*models.Fact, error)
	ListFacts(ctx context.Context) (*models.ListFactsResponse, error)
	LastAlert(ctx context.Context) (*models.LastAlertResponse, error)
	LastCouncilLog(ctx context.Context) (*models.CouncilLogResponse, error)
	CouncilLog(ctx context.Context, sessionID string) (*models.CouncilLogResponse, error)
}

type MemoryHandler struct {
	memoryService MemoryService
}

func NewMemoryHandler(memoryService MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// HandleAddFact handles POST /v1/facts.
func (h *MemoryHandler) HandleAddFact(w http.ResponseWriter, r *http.Request) {
	var req models.FactRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	fact, err := h.memoryService.AddFact(r.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrFactsUnavailable):
			httputil.RespondError(w, http.StatusServiceUnavailable, "Fact store unavailable")
		default:
			log.Error().Err(err).Msg("add fact failed")
			httputil.RespondError(w, http.StatusInternalServerError, "Failed to add fact")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, fact)
}

// HandleListFacts handles GET /v1/facts.
func (h *MemoryHandler) HandleListFacts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.memoryService.ListFacts(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "Fact store unavailable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleLastAlert handles GET /v1/alerts/last.
func (h *MemoryHandler) HandleLastAlert(w http.ResponseWriter, r *http.Request) {
	resp, err := h.memoryService.LastAlert(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "Alert store unavailable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleLastCouncilLog handles GET /v1/council/last.
func (h *MemoryHandler) HandleLastCouncilLog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.memoryService.LastCouncilLog(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "Council log unavailable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleCouncilLog handles GET /v1/council/{sessionID}.
func (h *MemoryHandler) HandleCouncilLog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.memoryService.CouncilLog(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrCouncilLogNotFound):
			httputil.RespondError(w, http.StatusNotFound, "No council log for that session.")
		default:
			httputil.RespondError(w, http.StatusServiceUnavailable, "Council log unavailable")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
