package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artvision/curator/backend/internal/config"
	authHandler "github.com/artvision/curator/backend/internal/handler/auth"
	"github.com/artvision/curator/backend/internal/handler/chat"
	"github.com/artvision/curator/backend/internal/handler/compat"
	imageHandler "github.com/artvision/curator/backend/internal/handler/images"
	"github.com/artvision/curator/backend/internal/handler/live"
	"github.com/artvision/curator/backend/internal/handler/persona"
	"github.com/artvision/curator/backend/internal/handler/stream"
	middlewarePkg "github.com/artvision/curator/backend/internal/middleware"
	personaModel "github.com/artvision/curator/backend/internal/model/persona"
	authService "github.com/artvision/curator/backend/internal/service/auth"
	chatService "github.com/artvision/curator/backend/internal/service/chat"
	"github.com/artvision/curator/backend/internal/storage/images"
	"github.com/artvision/curator/backend/pkg/utils"
)

// Dependencies bundles the services the router exposes.
type Dependencies struct {
	Config    *config.Config
	Personas  personaModel.Store
	Chat      *chatService.Service
	Images    *images.Store
	Auth      *authService.Service
	Assistant compat.Assistant // nil when no AI provider is configured
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	origins := middlewarePkg.NewOriginPolicy(deps.Config.Server.AllowedOrigins)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(origins.CORS())
	r.Use(middlewarePkg.LoadUser(deps.Auth))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ai":     deps.Chat.AIEnabled(),
			"auth":   deps.Auth.Enabled(),
		})
	})

	maxUpload := deps.Config.Server.MaxUploadBytes

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
		authHandler.New(deps.Auth).RegisterRoutes(api)
		imageHandler.New(deps.Images).RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			if deps.Config.Auth.Required {
				protected.Use(middlewarePkg.RequireAuth)
			}

			compat.New(deps.Assistant, deps.Personas, maxUpload, deps.Config.AI.HistoryLimit).RegisterRoutes(protected)
			chat.New(deps.Chat, deps.Personas, maxUpload).RegisterRoutes(protected)
			stream.New(deps.Chat, deps.Personas).RegisterRoutes(protected)
			live.NewWebSocketHandler(deps.Chat, origins.CheckOrigin).RegisterRoutes(protected)
		})
	})

	return r
}
