package handlers

import (
	"context"
	"errors"
	"net/http"

	"arc-backend/internal/models"
	"arc-backend/internal/services"
	"arc-backend/pkg/httputil"

	"github.com/rs/zerolog/log"
)

// AccessService defines the interface expected from the access service.
type AccessService interface {
	Unlock(ctx context.Context, code, clientIP string) (*models.AuthResponse, error)
}

type AuthHandler struct {
	accessService AccessService
}

func NewAuthHandler(accessSvc AccessService) *AuthHandler {
	return &AuthHandler{accessService: accessSvc}
}

// HandleUnlock handles the POST /v1/auth/unlock request.
func (h *AuthHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	var req models.UnlockRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.AccessCode == "" {
		httputil.RespondError(w, http.StatusBadRequest, "access_code is required")
		return
	}

	resp, err := h.accessService.Unlock(r.Context(), req.AccessCode, httputil.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAccessCode):
			httputil.RespondError(w, http.StatusUnauthorized, "ACCESS DENIED") // 401
		default:
			log.Error().Err(err).Msg("unlock failed")
			httputil.RespondError(w, http.StatusInternalServerError, "Unlock failed due to an internal error")
		}
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}
