package routers

import (
	"github.com/ThinkYuvraj/Sociale/internal/handlers"
	chat_handler "github.com/ThinkYuvraj/Sociale/internal/handlers/chat-handler"
	chat_service "github.com/ThinkYuvraj/Sociale/internal/use-case/chat-case"
	"github.com/go-chi/chi/v5"
)

func ChatRouter(r chi.Router, service chat_service.ChatServiceContract) {
	chatHandler := chat_handler.NewChatHandler(service)
	r.Route("/chats", func(r chi.Router) {
		r.Get("/", handlers.WrapHandler(chatHandler.ListChats))
		r.Post("/create", handlers.WrapHandler(chatHandler.CreateChat))
		r.Get("/{chatId}/messages", handlers.WrapHandler(chatHandler.GetMessages))
		r.Post("/{chatId}/message", handlers.WrapHandler(chatHandler.SendMessage))
		r.Post("/{chatId}/read", handlers.WrapHandler(chatHandler.MarkRead))
	})
}
