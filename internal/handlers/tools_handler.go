package handlers

import (
	"context"
	"net/http"

	"arc-backend/internal/models"
	"arc-backend/pkg/httputil"
)

// ToolsService defines the interface expected from the tools service.
type ToolsService interface {
	Weather(ctx context.Context, q string) models.WeatherResponse
	News(ctx context.Context) models.NewsResponse
}

type ToolsHandler struct {
	toolsService ToolsService
}

func NewToolsHandler(toolsService ToolsService) *ToolsHandler {
	return &ToolsHandler{toolsService: toolsService}
}

// HandleWeather handles GET /v1/tools/weather?q=.
func (h *ToolsHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.toolsService.Weather(r.Context(), r.URL.Query().Get("q")))
}

// HandleNews handles GET /v1/tools/news.
func (h *ToolsHandler) HandleNews(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.toolsService.News(r.Context()))
}
