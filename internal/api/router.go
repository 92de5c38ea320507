package api

import (
	"net/http"
	"time"

	"arc-backend/internal/config"
	"arc-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler   *handlers.AuthHandler
	ChatHandler   *handlers.ChatHandlers
	SpeechHandler *handlers.SpeechHandler
	ToolsHandler  *handlers.ToolsHandler
	MemoryHandler *handlers.MemoryHandler
	StatusHandler *handlers.StatusHandler

	UnlockLimiter *UnlockLimiter
	Metrics       http.Handler
	Observer      RequestObserver
	Config        *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	if deps.AuthHandler == nil || deps.ChatHandler == nil || deps.StatusHandler == nil {
		panic("auth, chat and status handlers are required in router setup")
	}

	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	// Without a trusted proxy, RemoteAddr stays the socket peer so forged headers
	// can't pick a fresh unlock bucket or failure count.
	if deps.Config.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(deps.Observer))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", deps.StatusHandler.HandleHealth)
	r.Get("/ping", deps.StatusHandler.HandlePing)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.UnlockLimiter != nil {
			r.With(deps.UnlockLimiter.Middleware).Post("/unlock", deps.AuthHandler.HandleUnlock)
		} else {
			r.Post("/unlock", deps.AuthHandler.HandleUnlock)
		}
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/query", deps.ChatHandler.HandleQuery)
			r.Get("/transcript", deps.ChatHandler.HandleTranscript)
			r.Delete("/transcript", deps.ChatHandler.HandleClear)
		})

		if deps.SpeechHandler != nil {
			r.Post("/speech", deps.SpeechHandler.HandleSpeech)
		} else {
			log.Warn().Msg("SpeechHandler dependency is nil, skipping /v1/speech")
		}

		if deps.ToolsHandler != nil {
			r.Route("/tools", func(r chi.Router) {
				r.Get("/weather", deps.ToolsHandler.HandleWeather)
				r.Get("/news", deps.ToolsHandler.HandleNews)
			})
		} else {
			log.Warn().Msg("ToolsHandler dependency is nil, skipping /v1/tools routes")
		}

		if deps.MemoryHandler != nil {
			r.Post("/facts", deps.MemoryHandler.HandleAddFact)
			r.Get("/facts", deps.MemoryHandler.HandleListFacts)
			r.Get("/alerts/last", deps.MemoryHandler.HandleLastAlert)
			r.Route("/council", func(r chi.Router) {
				r.Get("/last", deps.MemoryHandler.HandleLastCouncilLog)
				r.Get("/{sessionID}", deps.MemoryHandler.HandleCouncilLog)
			})
		} else {
			log.Warn().Msg("MemoryHandler dependency is nil, skipping /v1/facts, alerts and council routes")
		}

		r.Route("/status", func(r chi.Router) {
			r.Get("/last-tried", deps.StatusHandler.HandleLastTried)
			r.Get("/providers", deps.StatusHandler.HandleProviders)
			r.Get("/integrations", deps.StatusHandler.HandleIntegrations)
			r.Get("/integrations/{name}", deps.StatusHandler.HandleIntegration)
		})
	})

	return r
}
