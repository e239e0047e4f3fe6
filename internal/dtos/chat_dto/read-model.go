package chat_dto

import (
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
)

// Read models sent to clients. Built from raw entities plus a resolved
// user map, never by hydrating references inside the store.

type ReadView struct {
	User   string    `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

type MessageView struct {
	ID          string             `json:"_id"`
	Sender      entity.UserSummary `json:"sender"`
	Content     string             `json:"content"`
	MessageType string             `json:"messageType"`
	Media       *entity.Media      `json:"media,omitempty"`
	ReadBy      []ReadView         `json:"readBy"`
	IsEdited    bool               `json:"isEdited"`
	EditedAt    *time.Time         `json:"editedAt,omitempty"`
	ReplyTo     *string            `json:"replyTo,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type ParticipantView struct {
	entity.UserSummary
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type LastMessageView struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatView struct {
	ID           string            `json:"_id"`
	Participants []ParticipantView `json:"participants"`
	ChatType     string            `json:"chatType"`
	GroupName    string            `json:"groupName,omitempty"`
	GroupImage   string            `json:"groupImage,omitempty"`
	GroupAdmin   string            `json:"groupAdmin,omitempty"`
	LastMessage  *LastMessageView  `json:"lastMessage,omitempty"`
	IsActive     bool              `json:"isActive"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func summaryOf(users map[string]entity.UserSummary, id string) entity.UserSummary {
	if u, ok := users[id]; ok {
		return u
	}
	return entity.UserSummary{ID: id}
}

func NewMessageView(m *entity.Message, users map[string]entity.UserSummary) MessageView {
	readBy := make([]ReadView, 0, len(m.ReadBy))
	for _, r := range m.ReadBy {
		readBy = append(readBy, ReadView{User: r.User, ReadAt: r.ReadAt})
	}

	view := MessageView{
		ID:          m.ID.Hex(),
		Sender:      summaryOf(users, m.Sender),
		Content:     m.Content,
		MessageType: m.MessageType,
		Media:       m.Media,
		ReadBy:      readBy,
		IsEdited:    m.IsEdited,
		EditedAt:    m.EditedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ReplyTo != nil {
		replyTo := m.ReplyTo.Hex()
		view.ReplyTo = &replyTo
	}
	return view
}

func NewChatView(c *entity.Chat, users map[string]entity.UserSummary, status func(userID string) presence.Status) ChatView {
	participants := make([]ParticipantView, 0, len(c.Participants))
	for _, id := range c.Participants {
		p := ParticipantView{UserSummary: summaryOf(users, id)}
		if status != nil {
			s := status(id)
			p.IsOnline = s.IsOnline
			if !s.LastSeen.IsZero() {
				seen := s.LastSeen
				p.LastSeen = &seen
			}
		}
		participants = append(participants, p)
	}

	view := ChatView{
		ID:           c.ID.Hex(),
		Participants: participants,
		ChatType:     c.ChatType,
		GroupName:    c.GroupName,
		GroupImage:   c.GroupImage,
		GroupAdmin:   c.GroupAdmin,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.LastMessage != nil {
		view.LastMessage = &LastMessageView{
			Content:   c.LastMessage.Content,
			Sender:    c.LastMessage.Sender,
			Timestamp: c.LastMessage.Timestamp,
		}
	}
	return view
}
