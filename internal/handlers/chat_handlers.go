package handlers

import (
	"context"
	"errors"
	"net/http"

	"arc-backend/internal/auth"
	"arc-backend/internal/models"
	"arc-backend/internal/services"
	"arc-backend/pkg/httputil"

	"github.com/rs/zerolog/log"
)

// ChatService defines the interface expected from the chat service.
type ChatService interface {
	Query(ctx context.Context, sessionID string, req models.QueryRequest) (*models.QueryResponse, error)
	Transcript(ctx context.Context, sessionID string) *models.TranscriptResponse
	Clear(ctx context.Context, sessionID string) *models.TranscriptResponse
}

// ChatHandlers handles HTTP requests related to the session transcript.
type ChatHandlers struct {
	chatService ChatService
}

func NewChatHandlers(chatService ChatService) *ChatHandlers {
	return &ChatHandlers{chatService: chatService}
}

// HandleQuery handles POST /v1/chat/query.
func (h *ChatHandlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req models.QueryRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := h.chatService.Query(r.Context(), sessionID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("session_id", sessionID).Msg("query failed")
			httputil.RespondError(w, http.StatusInternalServerError, "Query failed due to an internal error")
		}
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleTranscript handles GET /v1/chat/transcript.
func (h *ChatHandlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, h.chatService.Transcript(r.Context(), sessionID))
}

// HandleClear handles DELETE /v1/chat/transcript (ghost mode).
func (h *ChatHandlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, h.chatService.Clear(r.Context(), sessionID))
}

// sessionFromRequest reads the session set by the auth middleware, writing 401 when absent.
func sessionFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return sessionID, true
}
