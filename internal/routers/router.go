package routers

import (
	"net/http"
	"time"

	hub_handler "github.com/ThinkYuvraj/Sociale/internal/handlers/hub-handler"
	"github.com/ThinkYuvraj/Sociale/internal/middleware"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
	chat_service "github.com/ThinkYuvraj/Sociale/internal/use-case/chat-case"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type Deps struct {
	Redis         *redis.Client
	CorsOrigins   []string
	RateLimit     RateLimitConfig
	Authenticator websocket.Authenticator
	Chats         chat_service.ChatServiceContract
	Membership    hub_handler.ChatMembership
	Hub           *websocket.Hub
	Presence      *presence.Registry
	WebSocket     *websocket.WebSocketHandler
	DLQ           hub_handler.DLQStats
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.WithRequestId)
	r.Use(middleware.AccessLog)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   deps.CorsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
	}).Handler)

	r.Handle("/ws", deps.WebSocket)

	r.Route("/api", func(api chi.Router) {
		if deps.Redis != nil && deps.RateLimit.Requests > 0 {
			api.Use(middleware.RateLimit(deps.Redis, deps.RateLimit.Requests, deps.RateLimit.Window))
		}

		hubHandler := hub_handler.NewHubHandler(deps.Hub, deps.Presence, deps.Membership, deps.WebSocket, deps.DLQ)
		api.Get("/health", hubHandler.HandleHealth)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth(deps.Authenticator))
			ChatRouter(protected, deps.Chats)
			HubRouter(protected, hubHandler)
		})
	})

	return r
}
