package hub_handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/handlers"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type ConnectionCounter interface {
	OpenConnections() int
}

type DLQStats interface {
	GetDLQStats(ctx context.Context) (map[string]int64, error)
}

// ChatMembership decides which rooms and users a caller may inspect.
type ChatMembership interface {
	FindChatByID(ctx context.Context, chatID string) (*entity.Chat, *app_error.AppError)
	FindActiveChatsForUser(ctx context.Context, userID string) ([]*entity.Chat, *app_error.AppError)
}

type HubHandler struct {
	Hub         *websocket.Hub
	Presence    *presence.Registry
	Chats       ChatMembership
	Connections ConnectionCounter
	DLQ         DLQStats
}

type ServerStats struct {
	websocket.HubStats
	OpenConnections int `json:"open_connections"`
	OnlineUsers     int `json:"online_users"`
}

func NewHubHandler(hub *websocket.Hub, registry *presence.Registry, chats ChatMembership, conns ConnectionCounter, dlq DLQStats) *HubHandler {
	return &HubHandler{
		Hub:         hub,
		Presence:    registry,
		Chats:       chats,
		Connections: conns,
		DLQ:         dlq,
	}
}

func (h *HubHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	handlers.Respond(w, r, http.StatusOK, "healthy", map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "chat-server",
	})
}

func (h *HubHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	stats := ServerStats{
		HubStats:    h.Hub.Stats(),
		OnlineUsers: h.Presence.OnlineCount(),
	}
	if h.Connections != nil {
		stats.OpenConnections = h.Connections.OpenConnections()
	}

	handlers.Respond(w, r, http.StatusOK, "get websocket stats", stats)
	return nil
}

func (h *HubHandler) HandleGetRoomStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	callerID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	roomID := chi.URLParam(r, "roomId")
	if websocket.IsPersonalRoom(roomID) {
		return app_error.NotFound("room not found", "roomId")
	}

	chat, appErr := h.Chats.FindChatByID(r.Context(), roomID)
	if appErr != nil {
		return appErr
	}
	if !chat.HasParticipant(callerID) {
		return app_error.Unauthorized("not a participant of this chat", "roomId")
	}

	handlers.Respond(w, r, http.StatusOK, "get websocket room stats", h.Hub.RoomStats(roomID))
	return nil
}

func (h *HubHandler) HandleGetUserStatus(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	callerID, appErr := handlers.CurrentUser(r)
	if appErr != nil {
		return appErr
	}

	userID := chi.URLParam(r, "userId")
	if userID != callerID {
		shared, appErr := h.sharesChat(r.Context(), callerID, userID)
		if appErr != nil {
			return appErr
		}
		if !shared {
			return app_error.Unauthorized("no shared chat with this user", "userId")
		}
	}

	status := h.Presence.Status(userID)

	resp := chat_dto.UserStatusResponse{
		UserID:            userID,
		IsOnline:          status.IsOnline,
		ActiveConnections: h.Hub.UserConnections(userID),
	}
	if !status.LastSeen.IsZero() {
		lastSeen := status.LastSeen
		resp.LastSeen = &lastSeen
	}

	handlers.Respond(w, r, http.StatusOK, "successful get user status", resp)
	return nil
}

func (h *HubHandler) sharesChat(ctx context.Context, callerID, userID string) (bool, *app_error.AppError) {
	chats, appErr := h.Chats.FindActiveChatsForUser(ctx, callerID)
	if appErr != nil {
		return false, appErr
	}
	for _, chat := range chats {
		if chat.HasParticipant(userID) {
			return true, nil
		}
	}
	return false, nil
}

func (h *HubHandler) HandleGetDLQStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	if h.DLQ == nil {
		return app_error.NotFound("job queue is not running", "dlq")
	}

	stats, err := h.DLQ.GetDLQStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read DLQ stats")
		return app_error.Persistence("failed to read DLQ stats", "dlq")
	}

	handlers.Respond(w, r, http.StatusOK, "get dlq stats", stats)
	return nil
}
