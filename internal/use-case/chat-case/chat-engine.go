package chat_service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
	chat_repo "github.com/ThinkYuvraj/Sociale/internal/repo/chat"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const previewLength = 100

// ChatEngine implements the socket protocol: presence on connect and
// disconnect, and one handler per inbound event.
type ChatEngine struct {
	hub       *websocket.Hub
	chats     chat_repo.ChatRepoContract
	users     UserDirectory
	presence  *presence.Registry
	presenceW PresenceWriter
	notifier  Notifier
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*presenceLock
}

// presenceLock orders one user's presence writes and announcements.
type presenceLock struct {
	mu   sync.Mutex
	refs int
}

var _ websocket.EventHandler = (*ChatEngine)(nil)

func NewChatEngine(hub *websocket.Hub, chats chat_repo.ChatRepoContract, users UserDirectory, registry *presence.Registry, presenceW PresenceWriter, notifier Notifier) *ChatEngine {
	return &ChatEngine{
		hub:       hub,
		chats:     chats,
		users:     users,
		presence:  registry,
		presenceW: presenceW,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     make(map[string]*presenceLock),
	}
}

func (e *ChatEngine) OnConnect(ctx context.Context, c *websocket.Client) {
	userID := c.UserID()
	e.hub.Join(c, websocket.PersonalRoom(userID))

	chats, appErr := e.chats.FindActiveChatsForUser(ctx, userID)
	if appErr != nil {
		log.Error().Str("userID", userID).Str("error", appErr.Message).Msg("engine: failed to load chats on connect")
		c.SendEvent(websocket.ErrorEvent("failed to load chats"))
	}
	for _, chat := range chats {
		e.hub.Join(c, chat.ID.Hex())
	}

	status, cameOnline := e.presence.Connect(userID)
	if !cameOnline {
		return
	}

	e.publishPresence(ctx, websocket.EventUserOnline, status, e.hub.Rooms(c))
}

func (e *ChatEngine) OnDisconnect(ctx context.Context, c *websocket.Client, rooms []string) {
	status, wentOffline := e.presence.Disconnect(c.UserID())
	if !wentOffline {
		return
	}

	e.publishPresence(ctx, websocket.EventUserOffline, status, rooms)
}

// publishPresence persists and announces one transition. Transitions of the
// same user run one at a time, and a transition already superseded in the
// registry (a reconnect during teardown) is dropped.
func (e *ChatEngine) publishPresence(ctx context.Context, event string, status presence.Status, rooms []string) {
	unlock := e.lockPresence(status.UserID)
	defer unlock()

	if !e.presence.Current(status) {
		log.Debug().Str("userID", status.UserID).Str("event", event).Msg("engine: skipping stale presence transition")
		return
	}
	e.persistPresence(ctx, status)

	if !e.presence.Current(status) {
		log.Debug().Str("userID", status.UserID).Str("event", event).Msg("engine: presence changed while persisting")
		return
	}
	e.announcePresence(event, status, rooms)
}

func (e *ChatEngine) lockPresence(userID string) func() {
	e.locksMu.Lock()
	l, ok := e.locks[userID]
	if !ok {
		l = &presenceLock{}
		e.locks[userID] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, userID)
		}
		e.locksMu.Unlock()
	}
}

func (e *ChatEngine) persistPresence(ctx context.Context, status presence.Status) {
	if e.presenceW == nil {
		return
	}
	if appErr := e.presenceW.UpdatePresence(ctx, status.UserID, status.IsOnline, status.LastSeen); appErr != nil {
		log.Warn().Str("userID", status.UserID).Str("error", appErr.Message).Msg("engine: failed to persist presence")
	}
}

// announcePresence tells peers in the user's chat rooms. Personal rooms
// are skipped so presence never leaks outside shared chats.
func (e *ChatEngine) announcePresence(event string, status presence.Status, rooms []string) {
	payload := chat_dto.PresencePayload{UserID: status.UserID}
	if !status.IsOnline {
		seen := status.LastSeen
		payload.LastSeen = &seen
	}
	evt := websocket.NewEvent(event, payload)

	for _, room := range rooms {
		if websocket.IsPersonalRoom(room) {
			continue
		}
		e.hub.BroadcastExceptUser(room, evt, status.UserID)
	}
}

func (e *ChatEngine) OnEvent(ctx context.Context, c *websocket.Client, evt websocket.InboundEvent) {
	switch ev := evt.(type) {
	case *websocket.JoinChat:
		e.joinChat(c, ev)
	case *websocket.LeaveChat:
		e.leaveChat(c, ev)
	case *websocket.SendMessage:
		e.sendMessage(ctx, c, ev)
	case *websocket.Typing:
		e.typing(c, ev)
	case *websocket.MarkMessagesRead:
		e.markMessagesRead(ctx, c, ev)
	case *websocket.LikePost:
		e.hub.DirectNotify(ev.AuthorID, websocket.NewEvent(websocket.EventPostLiked, chat_dto.PostLikedPayload{
			PostID:   ev.PostID,
			UserID:   c.UserID(),
			Username: c.User.Username,
			IsLiked:  ev.IsLiked,
		}), c)
	case *websocket.CommentPost:
		e.hub.DirectNotify(ev.AuthorID, websocket.NewEvent(websocket.EventPostCommented, chat_dto.PostCommentedPayload{
			PostID:   ev.PostID,
			UserID:   c.UserID(),
			Username: c.User.Username,
			Comment:  ev.Comment,
		}), c)
	case *websocket.FollowUser:
		e.hub.DirectNotify(ev.UserID, websocket.NewEvent(websocket.EventUserFollowed, chat_dto.UserFollowedPayload{
			UserID:         c.UserID(),
			Username:       c.User.Username,
			ProfilePicture: c.User.ProfilePicture,
			IsFollowing:    ev.IsFollowing,
		}), c)
	default:
		c.SendEvent(websocket.ErrorEvent("unsupported event"))
	}
}

func (e *ChatEngine) joinChat(c *websocket.Client, ev *websocket.JoinChat) {
	// personal rooms are only ever joined by their owner, on connect
	if websocket.IsPersonalRoom(ev.ChatID) {
		c.SendEvent(websocket.ErrorEvent("invalid chat id"))
		return
	}
	e.hub.Join(c, ev.ChatID)
}

func (e *ChatEngine) leaveChat(c *websocket.Client, ev *websocket.LeaveChat) {
	if websocket.IsPersonalRoom(ev.ChatID) {
		return
	}
	e.hub.Leave(c, ev.ChatID)
}

func (e *ChatEngine) typing(c *websocket.Client, ev *websocket.Typing) {
	e.hub.Broadcast(ev.ChatID, websocket.NewEvent(websocket.EventUserTyping, chat_dto.UserTypingPayload{
		ChatID:   ev.ChatID,
		UserID:   c.UserID(),
		Username: c.User.Username,
		IsTyping: ev.IsTyping,
	}), c)
}

func (e *ChatEngine) sendMessage(ctx context.Context, c *websocket.Client, ev *websocket.SendMessage) {
	content := strings.TrimSpace(ev.Content)
	if content == "" {
		c.SendEvent(websocket.ErrorEvent("message content is required"))
		return
	}

	messageType := ev.MessageType
	if messageType == "" {
		messageType = entity.MessageTypeText
	}

	now := e.now()
	msg := &entity.Message{
		ID:          bson.NewObjectID(),
		Sender:      c.UserID(),
		Content:     content,
		MessageType: messageType,
		ReadBy:      []entity.ReadEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	chat, appErr := e.chats.AppendMessage(ctx, ev.ChatID, msg)
	if appErr != nil {
		log.Warn().Str("userID", c.UserID()).Str("chatID", ev.ChatID).Str("kind", string(appErr.Kind)).Str("error", appErr.Message).Msg("engine: send-message rejected")
		c.SendEvent(websocket.ErrorEvent(clientMessage(appErr, "failed to send message")))
		return
	}

	sender := e.resolveSender(ctx, c)
	view := chat_dto.NewMessageView(msg, map[string]entity.UserSummary{sender.ID: sender})

	// the sender is a verified participant; make sure this session hears
	// the chat even if it was created after connect
	e.hub.Join(c, ev.ChatID)
	e.hub.Broadcast(ev.ChatID, websocket.NewEvent(websocket.EventNewMessage, chat_dto.NewMessagePayload{
		ChatID:  ev.ChatID,
		Message: view,
	}), nil)

	e.notifyOffline(ctx, chat, msg, sender)
}

func (e *ChatEngine) resolveSender(ctx context.Context, c *websocket.Client) entity.UserSummary {
	if e.users != nil {
		if u, appErr := e.users.Resolve(ctx, c.UserID()); appErr == nil {
			return *u
		}
	}
	return c.User
}

func (e *ChatEngine) notifyOffline(ctx context.Context, chat *entity.Chat, msg *entity.Message, sender entity.UserSummary) {
	if e.notifier == nil {
		return
	}

	others := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p != msg.Sender {
			others = append(others, p)
		}
	}

	offline := e.presence.Offline(others)
	if len(offline) == 0 {
		return
	}

	payload := chat_dto.OfflineMessagePayload{
		ChatID:     chat.ID.Hex(),
		MessageID:  msg.ID.Hex(),
		SenderID:   msg.Sender,
		SenderName: sender.Username,
		Preview:    preview(entity.LastMessageContent(msg)),
		Recipients: offline,
	}
	if err := e.notifier.NotifyOffline(ctx, payload); err != nil {
		log.Error().Err(err).Str("chatID", payload.ChatID).Int("recipients", len(offline)).Msg("engine: failed to hand off offline notification")
	}
}

func (e *ChatEngine) markMessagesRead(ctx context.Context, c *websocket.Client, ev *websocket.MarkMessagesRead) {
	readAt := e.now()

	appErr := e.chats.MarkMessagesRead(ctx, ev.ChatID, c.UserID(), readAt)
	if appErr != nil {
		if app_error.Is(appErr, app_error.KindNotFound) || app_error.Is(appErr, app_error.KindUnauthorized) {
			log.Debug().Str("userID", c.UserID()).Str("chatID", ev.ChatID).Msg("engine: mark-messages-read ignored")
			return
		}
		log.Error().Str("userID", c.UserID()).Str("chatID", ev.ChatID).Str("error", appErr.Message).Msg("engine: failed to mark messages read")
		c.SendEvent(websocket.ErrorEvent("failed to mark messages as read"))
		return
	}

	e.hub.Broadcast(ev.ChatID, websocket.NewEvent(websocket.EventMessagesRead, chat_dto.MessagesReadPayload{
		ChatID: ev.ChatID,
		UserID: c.UserID(),
		ReadAt: readAt,
	}), c)
}

// clientMessage keeps store internals out of socket errors.
func clientMessage(appErr *app_error.AppError, fallback string) string {
	if appErr.Kind == app_error.KindPersistence {
		return fallback
	}
	return appErr.Message
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
