package chat_service

import (
	"context"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
)

type ChatServiceContract interface {
	ListChats(ctx context.Context, userID string) ([]chat_dto.ChatView, *app_error.AppError)
	CreateChat(ctx context.Context, userID string, req chat_dto.CreateChatRequest) (*chat_dto.CreateChatResponse, *app_error.AppError)
	GetMessages(ctx context.Context, userID, chatID string, query chat_dto.MessagesQuery) (*chat_dto.MessagesPage, *app_error.AppError)
	SendMessage(ctx context.Context, userID, chatID string, req chat_dto.SendMessageRequest) (*chat_dto.MessageView, *app_error.AppError)
	MarkRead(ctx context.Context, userID, chatID string) (*chat_dto.MarkReadResponse, *app_error.AppError)
}

// UserDirectory resolves user ids to public summaries.
type UserDirectory interface {
	Resolve(ctx context.Context, userID string) (*entity.UserSummary, *app_error.AppError)
	ResolveMany(ctx context.Context, userIDs []string) map[string]entity.UserSummary
}

// PresenceWriter mirrors presence transitions into durable storage.
type PresenceWriter interface {
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) *app_error.AppError
}

// Notifier takes over delivery to participants who are offline.
type Notifier interface {
	NotifyOffline(ctx context.Context, payload chat_dto.OfflineMessagePayload) error
}

var _ ChatServiceContract = (*ChatService)(nil)
