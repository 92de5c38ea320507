package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"arc-backend/internal/models"
	"arc-backend/internal/services"
	"arc-backend/pkg/httputil"

	"github.com/rs/zerolog/log"
)

// SpeechService defines the interface expected from the speech service.
type SpeechService interface {
	Speak(ctx context.Context, text string) (*services.SpeechResult, error)
}

type SpeechHandler struct {
	speechService SpeechService
}

func NewSpeechHandler(speechService SpeechService) *SpeechHandler {
	return &SpeechHandler{speechService: speechService}
}

// HandleSpeech handles POST /v1/speech. It answers with audio, or with a JSON caption
// when synthesis is unavailable.
func (h *SpeechHandler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	var req models.SpeechRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	res, err := h.speechService.Speak(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			httputil.RespondError(w, http.StatusBadRequest, "text is required")
			return
		}
		log.Error().Err(err).Msg("speech failed")
		httputil.RespondJSON(w, http.StatusOK, models.SpeechFallbackResponse{Caption: services.VoiceOfflineCaption})
		return
	}

	if res.Audio == nil {
		httputil.RespondJSON(w, http.StatusOK, models.SpeechFallbackResponse{Caption: res.Caption})
		return
	}

	w.Header().Set("Content-Type", res.Audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio.Data); err != nil {
		log.Debug().Err(err).Msg("client went away during audio write")
	}
}
