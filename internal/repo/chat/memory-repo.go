package chat_repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryChatRepo is a process-local Chat Store with the same semantics as
// ChatRepo. Every mutation happens under one lock. It backs the package
// contract suite and the service tests; the server always runs on ChatRepo.
type MemoryChatRepo struct {
	mu    sync.Mutex
	chats map[bson.ObjectID]*entity.Chat
	pairs map[string]bson.ObjectID
}

func NewMemoryChatRepo() *MemoryChatRepo {
	return &MemoryChatRepo{
		chats: make(map[bson.ObjectID]*entity.Chat),
		pairs: make(map[string]bson.ObjectID),
	}
}

// header copies everything but the message log.
func header(c *entity.Chat) *entity.Chat {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.Messages = nil
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return &out
}

func copyMessage(m entity.Message) entity.Message {
	m.ReadBy = append([]entity.ReadEntry{}, m.ReadBy...)
	return m
}

func (r *MemoryChatRepo) lookup(chatID string) (*entity.Chat, *app_error.AppError) {
	id, appErr := parseChatID(chatID)
	if appErr != nil {
		return nil, appErr
	}
	chat, ok := r.chats[id]
	if !ok || !chat.IsActive {
		return nil, chatNotFound()
	}
	return chat, nil
}

func (r *MemoryChatRepo) FindChatByID(ctx context.Context, chatID string) (*entity.Chat, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, appErr := r.lookup(chatID)
	if appErr != nil {
		return nil, appErr
	}
	return header(chat), nil
}

func (r *MemoryChatRepo) FindActiveChatsForUser(ctx context.Context, userID string) ([]*entity.Chat, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chats := make([]*entity.Chat, 0)
	for _, c := range r.chats {
		if c.IsActive && c.HasParticipant(userID) {
			chats = append(chats, header(c))
		}
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return activity(chats[i]).After(activity(chats[j]))
	})
	return chats, nil
}

func activity(c *entity.Chat) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.UpdatedAt
}

func (r *MemoryChatRepo) FindOrCreatePrivateChat(ctx context.Context, userA, userB string) (*entity.Chat, bool, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entity.PrivatePairKey(userA, userB)
	if id, ok := r.pairs[key]; ok {
		return header(r.chats[id]), false, nil
	}

	now := time.Now().UTC()
	chat := &entity.Chat{
		ID:           bson.NewObjectID(),
		Participants: []string{userA, userB},
		ChatType:     entity.ChatTypePrivate,
		PairKey:      key,
		Messages:     []entity.Message{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.chats[chat.ID] = chat
	r.pairs[key] = chat.ID

	return header(chat), true, nil
}

func (r *MemoryChatRepo) CreateGroupChat(ctx context.Context, admin, name string, participants []string) (*entity.Chat, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	chat := &entity.Chat{
		ID:           bson.NewObjectID(),
		Participants: append([]string(nil), participants...),
		ChatType:     entity.ChatTypeGroup,
		GroupName:    name,
		GroupAdmin:   admin,
		Messages:     []entity.Message{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.chats[chat.ID] = chat

	return header(chat), nil
}

func (r *MemoryChatRepo) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, appErr := r.lookup(chatID)
	if appErr != nil {
		return nil, appErr
	}
	if !chat.HasParticipant(msg.Sender) {
		return nil, notParticipant()
	}

	if msg.ReadBy == nil {
		msg.ReadBy = []entity.ReadEntry{}
	}
	chat.Messages = append(chat.Messages, copyMessage(*msg))
	chat.LastMessage = &entity.LastMessage{
		Content:   entity.LastMessageContent(msg),
		Sender:    msg.Sender,
		Timestamp: msg.CreatedAt,
	}
	chat.UpdatedAt = msg.CreatedAt

	return header(chat), nil
}

func (r *MemoryChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string, readAt time.Time) *app_error.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, appErr := r.lookup(chatID)
	if appErr != nil {
		return appErr
	}
	if !chat.HasParticipant(userID) {
		return notParticipant()
	}

	for i := range chat.Messages {
		m := &chat.Messages[i]
		if m.Sender == userID || m.IsReadBy(userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, entity.ReadEntry{User: userID, ReadAt: readAt})
	}
	return nil
}

func (r *MemoryChatRepo) GetMessages(ctx context.Context, chatID string, skip, limit int) ([]entity.Message, int, *app_error.AppError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, appErr := r.lookup(chatID)
	if appErr != nil {
		return nil, 0, appErr
	}

	total := len(chat.Messages)
	start, end := pageBounds(total, skip, limit)

	page := make([]entity.Message, 0, end-start)
	for _, m := range chat.Messages[start:end] {
		page = append(page, copyMessage(m))
	}
	return page, total, nil
}

// Deactivate soft-deletes a chat.
func (r *MemoryChatRepo) Deactivate(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, err := bson.ObjectIDFromHex(chatID); err == nil {
		if c, ok := r.chats[id]; ok {
			c.IsActive = false
		}
	}
}
