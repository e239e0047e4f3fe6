package websocket

import (
	"errors"
	"fmt"
	"strings"

	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validator.New(validator.WithRequiredStructEnabled())

// inbound
const (
	EventJoinChat         = "join-chat"
	EventLeaveChat        = "leave-chat"
	EventSendMessage      = "send-message"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
	EventMarkMessagesRead = "mark-messages-read"
	EventLikePost         = "like-post"
	EventCommentPost      = "comment-post"
	EventFollowUser       = "follow-user"
)

// outbound
const (
	EventNewMessage    = "new-message"
	EventUserTyping    = "user-typing"
	EventMessagesRead  = "messages-read"
	EventPostLiked     = "post-liked"
	EventPostCommented = "post-commented"
	EventUserFollowed  = "user-followed"
	EventUserOnline    = "user-online"
	EventUserOffline   = "user-offline"
	EventError         = "error"
)

// InboundEvent is one of the client-to-server events below. The set is
// closed; DecodeEvent rejects anything else.
type InboundEvent interface {
	EventName() string
	inbound()
}

type JoinChat struct {
	ChatID string `json:"chatId" validate:"required"`
}

type LeaveChat struct {
	ChatID string `json:"chatId" validate:"required"`
}

type SendMessage struct {
	ChatID      string `json:"chatId" validate:"required"`
	Content     string `json:"content" validate:"required,max=1000"`
	MessageType string `json:"messageType" validate:"omitempty,oneof=text image video file"`
}

type Typing struct {
	ChatID   string `json:"chatId" validate:"required"`
	IsTyping bool   `json:"-"`
}

type MarkMessagesRead struct {
	ChatID string `json:"chatId" validate:"required"`
}

type LikePost struct {
	PostID   string `json:"postId" validate:"required"`
	AuthorID string `json:"authorId" validate:"required"`
	IsLiked  bool   `json:"isLiked"`
}

type CommentPost struct {
	PostID   string `json:"postId" validate:"required"`
	AuthorID string `json:"authorId" validate:"required"`
	Comment  string `json:"comment" validate:"required,max=1000"`
}

type FollowUser struct {
	UserID      string `json:"userId" validate:"required"`
	IsFollowing bool   `json:"isFollowing"`
}

func (*JoinChat) EventName() string         { return EventJoinChat }
func (*LeaveChat) EventName() string        { return EventLeaveChat }
func (*SendMessage) EventName() string      { return EventSendMessage }
func (*MarkMessagesRead) EventName() string { return EventMarkMessagesRead }
func (*LikePost) EventName() string         { return EventLikePost }
func (*CommentPost) EventName() string      { return EventCommentPost }
func (*FollowUser) EventName() string       { return EventFollowUser }

func (t *Typing) EventName() string {
	if t.IsTyping {
		return EventTypingStart
	}
	return EventTypingStop
}

func (*JoinChat) inbound()         {}
func (*LeaveChat) inbound()        {}
func (*SendMessage) inbound()      {}
func (*Typing) inbound()           {}
func (*MarkMessagesRead) inbound() {}
func (*LikePost) inbound()         {}
func (*CommentPost) inbound()      {}
func (*FollowUser) inbound()       {}

type envelope struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data"`
}

func DecodeEvent(raw []byte) (InboundEvent, *app_error.AppError) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, app_error.Validation("malformed event", "event")
	}

	var evt InboundEvent
	switch env.Event {
	case EventJoinChat:
		evt = &JoinChat{}
	case EventLeaveChat:
		evt = &LeaveChat{}
	case EventSendMessage:
		evt = &SendMessage{}
	case EventTypingStart:
		evt = &Typing{IsTyping: true}
	case EventTypingStop:
		evt = &Typing{IsTyping: false}
	case EventMarkMessagesRead:
		evt = &MarkMessagesRead{}
	case EventLikePost:
		evt = &LikePost{}
	case EventCommentPost:
		evt = &CommentPost{}
	case EventFollowUser:
		evt = &FollowUser{}
	default:
		return nil, app_error.Validation(fmt.Sprintf("unknown event %q", env.Event), "event")
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, evt); err != nil {
			return nil, app_error.Validation(fmt.Sprintf("malformed %s payload", env.Event), "data")
		}
	}

	if err := validate.Struct(evt); err != nil {
		return nil, validationError(env.Event, err)
	}

	return evt, nil
}

func validationError(event string, err error) *app_error.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return app_error.Validation(fmt.Sprintf("invalid %s payload", event), "data")
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return app_error.Validation(fmt.Sprintf("invalid %s payload: %s", event, strings.Join(fields, ", ")), verrs[0].Field())
}

// OutgoingEvent is the server-to-client envelope.
type OutgoingEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func NewEvent(name string, data any) OutgoingEvent {
	return OutgoingEvent{Event: name, Data: data}
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func ErrorEvent(message string) OutgoingEvent {
	return NewEvent(EventError, ErrorPayload{Message: message})
}
