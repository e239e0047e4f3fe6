package chat_dto

import "time"

type NewMessagePayload struct {
	ChatID  string      `json:"chatId"`
	Message MessageView `json:"message"`
}

type UserTypingPayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type MessagesReadPayload struct {
	ChatID string    `json:"chatId"`
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type PostLikedPayload struct {
	PostID   string `json:"postId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsLiked  bool   `json:"isLiked"`
}

type PostCommentedPayload struct {
	PostID   string `json:"postId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Comment  string `json:"comment"`
}

type UserFollowedPayload struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	IsFollowing    bool   `json:"isFollowing"`
}

type PresencePayload struct {
	UserID   string     `json:"userId"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// OfflineMessagePayload is the push job queued for participants who were
// offline when a message landed.
type OfflineMessagePayload struct {
	ChatID     string   `json:"chatId"`
	MessageID  string   `json:"messageId"`
	SenderID   string   `json:"senderId"`
	SenderName string   `json:"senderName"`
	Preview    string   `json:"preview"`
	Recipients []string `json:"recipients"`
}
