package routers

import (
	"github.com/ThinkYuvraj/Sociale/internal/handlers"
	hub_handler "github.com/ThinkYuvraj/Sociale/internal/handlers/hub-handler"
	"github.com/go-chi/chi/v5"
)

func HubRouter(r chi.Router, hubHandler *hub_handler.HubHandler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetStats))
		r.Get("/dlq/stats", handlers.WrapHandler(hubHandler.HandleGetDLQStats))
		r.Get("/rooms/{roomId}/stats", handlers.WrapHandler(hubHandler.HandleGetRoomStats))
		r.Get("/users/{userId}/status", handlers.WrapHandler(hubHandler.HandleGetUserStatus))
	})
}
