package chat_service

import (
	"context"
	"strings"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
	chat_repo "github.com/ThinkYuvraj/Sociale/internal/repo/chat"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// RoomJoiner subscribes a user's live sessions to a room.
type RoomJoiner interface {
	JoinUser(userID, roomID string)
}

type ChatService struct {
	ChatRepo chat_repo.ChatRepoContract
	Users    UserDirectory
	Presence *presence.Registry
	Rooms    RoomJoiner
	now      func() time.Time
}

func NewChatService(chats chat_repo.ChatRepoContract, users UserDirectory, registry *presence.Registry, rooms RoomJoiner) *ChatService {
	return &ChatService{
		ChatRepo: chats,
		Users:    users,
		Presence: registry,
		Rooms:    rooms,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatService) chatViews(ctx context.Context, chats ...*entity.Chat) []chat_dto.ChatView {
	ids := make([]string, 0)
	for _, c := range chats {
		ids = append(ids, c.Participants...)
	}
	users := s.Users.ResolveMany(ctx, ids)

	views := make([]chat_dto.ChatView, 0, len(chats))
	for _, c := range chats {
		views = append(views, chat_dto.NewChatView(c, users, s.Presence.Status))
	}
	return views
}

func (s *ChatService) ListChats(ctx context.Context, userID string) ([]chat_dto.ChatView, *app_error.AppError) {
	chats, err := s.ChatRepo.FindActiveChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.chatViews(ctx, chats...), nil
}

func (s *ChatService) CreateChat(ctx context.Context, userID string, req chat_dto.CreateChatRequest) (*chat_dto.CreateChatResponse, *app_error.AppError) {
	var (
		chat    *entity.Chat
		created bool
		err     *app_error.AppError
	)

	switch req.ChatType {
	case entity.ChatTypePrivate:
		chat, created, err = s.createPrivate(ctx, userID, req.ParticipantID)
	case entity.ChatTypeGroup:
		chat, err = s.createGroup(ctx, userID, req)
		created = true
	default:
		return nil, app_error.Validation("chatType must be private or group", "chatType")
	}
	if err != nil {
		return nil, err
	}

	if created && s.Rooms != nil {
		for _, p := range chat.Participants {
			s.Rooms.JoinUser(p, chat.ID.Hex())
		}
	}

	return &chat_dto.CreateChatResponse{
		Chat:    s.chatViews(ctx, chat)[0],
		Created: created,
	}, nil
}

func (s *ChatService) createPrivate(ctx context.Context, userID, participantID string) (*entity.Chat, bool, *app_error.AppError) {
	if participantID == "" {
		return nil, false, app_error.Validation("participantId is required", "participantId")
	}
	if participantID == userID {
		return nil, false, app_error.Validation("cannot create a chat with yourself", "participantId")
	}
	if _, err := s.Users.Resolve(ctx, participantID); err != nil {
		if app_error.Is(err, app_error.KindNotFound) {
			return nil, false, app_error.NotFound("user not found", "participantId")
		}
		return nil, false, err
	}

	return s.ChatRepo.FindOrCreatePrivateChat(ctx, userID, participantID)
}

func (s *ChatService) createGroup(ctx context.Context, userID string, req chat_dto.CreateChatRequest) (*entity.Chat, *app_error.AppError) {
	name := strings.TrimSpace(req.GroupName)
	if name == "" {
		return nil, app_error.Validation("groupName is required", "groupName")
	}

	participants := []string{userID}
	seen := map[string]struct{}{userID: {}}
	for _, id := range req.ParticipantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	if len(participants) < 3 {
		return nil, app_error.Validation("a group needs at least two other participants", "participantIds")
	}

	found := s.Users.ResolveMany(ctx, participants[1:])
	for _, id := range participants[1:] {
		if _, ok := found[id]; !ok {
			return nil, app_error.NotFound("user not found: "+id, "participantIds")
		}
	}

	return s.ChatRepo.CreateGroupChat(ctx, userID, name, participants)
}

// participantChat loads chatID and checks userID belongs to it.
func (s *ChatService) participantChat(ctx context.Context, userID, chatID string) (*entity.Chat, *app_error.AppError) {
	chat, err := s.ChatRepo.FindChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, app_error.Unauthorized("not a participant of this chat", "chatId")
	}
	return chat, nil
}

func (s *ChatService) GetMessages(ctx context.Context, userID, chatID string, query chat_dto.MessagesQuery) (*chat_dto.MessagesPage, *app_error.AppError) {
	if _, err := s.participantChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	skip := (query.Page - 1) * query.Limit
	messages, total, err := s.ChatRepo.GetMessages(ctx, chatID, skip, query.Limit)
	if err != nil {
		return nil, err
	}

	senders := make([]string, 0, len(messages))
	for _, m := range messages {
		senders = append(senders, m.Sender)
	}
	users := s.Users.ResolveMany(ctx, senders)

	views := make([]chat_dto.MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, chat_dto.NewMessageView(&messages[i], users))
	}

	return &chat_dto.MessagesPage{
		Messages:    views,
		CurrentPage: query.Page,
		HasMore:     skip+len(messages) < total,
		Total:       total,
	}, nil
}

// SendMessage is the REST path for messages with a media reference. It
// stores the message; live delivery happens over the socket.
func (s *ChatService) SendMessage(ctx context.Context, userID, chatID string, req chat_dto.SendMessageRequest) (*chat_dto.MessageView, *app_error.AppError) {
	content := strings.TrimSpace(req.Content)
	if content == "" && req.Media == nil {
		return nil, app_error.Validation("message content or media is required", "content")
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = entity.MessageTypeText
		if req.Media != nil {
			messageType = entity.MessageTypeFile
		}
	}
	if messageType != entity.MessageTypeText && req.Media == nil {
		return nil, app_error.Validation("media is required for "+messageType+" messages", "media")
	}

	now := s.now()
	msg := &entity.Message{
		ID:          bson.NewObjectID(),
		Sender:      userID,
		Content:     content,
		MessageType: messageType,
		Media:       req.Media.ToEntity(),
		ReadBy:      []entity.ReadEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.ChatRepo.AppendMessage(ctx, chatID, msg); err != nil {
		return nil, err
	}

	view := chat_dto.NewMessageView(msg, s.Users.ResolveMany(ctx, []string{userID}))
	return &view, nil
}

func (s *ChatService) MarkRead(ctx context.Context, userID, chatID string) (*chat_dto.MarkReadResponse, *app_error.AppError) {
	readAt := s.now()
	if err := s.ChatRepo.MarkMessagesRead(ctx, chatID, userID, readAt); err != nil {
		return nil, err
	}

	return &chat_dto.MarkReadResponse{
		ChatID: chatID,
		UserID: userID,
		ReadAt: readAt,
	}, nil
}
