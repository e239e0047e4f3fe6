package chat_repo

import (
	"context"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
)

// ChatRepoContract is the Chat Store. Chats returned by lookups carry no
// message log; use GetMessages for that.
type ChatRepoContract interface {
	FindChatByID(ctx context.Context, chatID string) (*entity.Chat, *app_error.AppError)
	FindActiveChatsForUser(ctx context.Context, userID string) ([]*entity.Chat, *app_error.AppError)
	// FindOrCreatePrivateChat reports created=false when the pair already had a chat.
	FindOrCreatePrivateChat(ctx context.Context, userA, userB string) (chat *entity.Chat, created bool, err *app_error.AppError)
	CreateGroupChat(ctx context.Context, admin, name string, participants []string) (*entity.Chat, *app_error.AppError)
	// AppendMessage appends msg and updates lastMessage in one atomic step,
	// only if msg.Sender is a participant of an active chat.
	AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, *app_error.AppError)
	// MarkMessagesRead adds (userID, readAt) to every message not sent by
	// userID and not yet read by userID.
	MarkMessagesRead(ctx context.Context, chatID, userID string, readAt time.Time) *app_error.AppError
	// GetMessages pages newest-first and returns the page in chronological order.
	GetMessages(ctx context.Context, chatID string, skip, limit int) ([]entity.Message, int, *app_error.AppError)
}

func chatNotFound() *app_error.AppError {
	return app_error.NotFound("chat not found", "chatId")
}

func notParticipant() *app_error.AppError {
	return app_error.Unauthorized("not a participant of this chat", "chatId")
}

// pageBounds maps a newest-first (skip, limit) page onto chronological
// indexes [start, end) of a log of length total.
func pageBounds(total, skip, limit int) (start, end int) {
	end = total - skip
	if end <= 0 {
		return 0, 0
	}
	start = end - limit
	if start < 0 {
		start = 0
	}
	return start, end
}
