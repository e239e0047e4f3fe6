package chat_handler

import (
	"net/http"
	"strconv"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/handlers"
	chat_service "github.com/ThinkYuvraj/Sociale/internal/use-case/chat-case"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPage  = 1
	defaultLimit = 50
)

type ChatHandler struct {
	Validate *validator.Validate
	Service  chat_service.ChatServiceContract
}

func NewChatHandler(service chat_service.ChatServiceContract) *ChatHandler {
	return &ChatHandler{
		Validate: validator.New(),
		Service:  service,
	}
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, err := handlers.CurrentUser(r)
	if err != nil {
		return err
	}

	chats, err := h.Service.ListChats(r.Context(), userID)
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "chats fetch successfully", chats)
	return nil
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, err := handlers.CurrentUser(r)
	if err != nil {
		return err
	}

	var req chat_dto.CreateChatRequest
	if err := handlers.DecodeAndValidate(r, h.Validate, &req); err != nil {
		return err
	}

	resp, err := h.Service.CreateChat(r.Context(), userID, req)
	if err != nil {
		return err
	}

	status, message := http.StatusOK, "chat already exists"
	if resp.Created {
		status, message = http.StatusCreated, "chat created successfully"
	}
	handlers.Respond(w, r, status, message, *resp)
	return nil
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, err := handlers.CurrentUser(r)
	if err != nil {
		return err
	}

	query := chat_dto.MessagesQuery{
		Page:  intParam(r, "page", defaultPage),
		Limit: intParam(r, "limit", defaultLimit),
	}
	if err := handlers.Validate(h.Validate, query); err != nil {
		return err
	}

	page, err := h.Service.GetMessages(r.Context(), userID, chi.URLParam(r, "chatId"), query)
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "messages fetch successfully", *page)
	return nil
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, err := handlers.CurrentUser(r)
	if err != nil {
		return err
	}

	var req chat_dto.SendMessageRequest
	if err := handlers.DecodeAndValidate(r, h.Validate, &req); err != nil {
		return err
	}

	msg, err := h.Service.SendMessage(r.Context(), userID, chi.URLParam(r, "chatId"), req)
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusCreated, "message sent successfully", *msg)
	return nil
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, err := handlers.CurrentUser(r)
	if err != nil {
		return err
	}

	resp, err := h.Service.MarkRead(r.Context(), userID, chi.URLParam(r, "chatId"))
	if err != nil {
		return err
	}

	handlers.Respond(w, r, http.StatusOK, "messages marked as read", *resp)
	return nil
}

// intParam reads a query integer, falling back to def when absent. Malformed
// values become 0 so validation rejects them.
func intParam(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
