package chat_dto

import "time"

type MessagesPage struct {
	Messages    []MessageView `json:"messages"`
	CurrentPage int           `json:"currentPage"`
	HasMore     bool          `json:"hasMore"`
	Total       int           `json:"total"`
}

type CreateChatResponse struct {
	Chat    ChatView `json:"chat"`
	Created bool     `json:"created"`
}

type MarkReadResponse struct {
	ChatID string    `json:"chatId"`
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type UserStatusResponse struct {
	UserID            string     `json:"userId"`
	IsOnline          bool       `json:"isOnline"`
	LastSeen          *time.Time `json:"lastSeen,omitempty"`
	ActiveConnections int        `json:"activeConnections"`
}
