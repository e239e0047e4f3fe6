package entity

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeFile  = "file"
)

const (
	MaxContentLength   = 1000
	MaxGroupNameLength = 100
)

type Chat struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Participants []string      `bson:"participants"`
	ChatType     string        `bson:"chatType"`
	// PairKey is set for private chats only; a unique partial index on it
	// keeps one private chat per unordered pair.
	PairKey     string       `bson:"pairKey,omitempty"`
	GroupName   string       `bson:"groupName,omitempty"`
	GroupImage  string       `bson:"groupImage,omitempty"`
	GroupAdmin  string       `bson:"groupAdmin,omitempty"`
	Messages    []Message    `bson:"messages"`
	LastMessage *LastMessage `bson:"lastMessage,omitempty"`
	IsActive    bool         `bson:"isActive"`
	CreatedAt   time.Time    `bson:"createdAt"`
	UpdatedAt   time.Time    `bson:"updatedAt"`
}

type LastMessage struct {
	Content   string    `bson:"content"`
	Sender    string    `bson:"sender"`
	Timestamp time.Time `bson:"timestamp"`
}

type Message struct {
	ID          bson.ObjectID  `bson:"_id"`
	Sender      string         `bson:"sender"`
	Content     string         `bson:"content"`
	MessageType string         `bson:"messageType"`
	Media       *Media         `bson:"media,omitempty"`
	ReadBy      []ReadEntry    `bson:"readBy"`
	IsEdited    bool           `bson:"isEdited"`
	EditedAt    *time.Time     `bson:"editedAt,omitempty"`
	ReplyTo     *bson.ObjectID `bson:"replyTo,omitempty"`
	CreatedAt   time.Time      `bson:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt"`
}

type Media struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"publicId,omitempty" json:"publicId,omitempty"`
	FileName string `bson:"fileName,omitempty" json:"fileName,omitempty"`
	FileSize int64  `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
}

type ReadEntry struct {
	User   string    `bson:"user"`
	ReadAt time.Time `bson:"readAt"`
}

func (c *Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.User == userID {
			return true
		}
	}
	return false
}

// PrivatePairKey is order independent: PrivatePairKey(a, b) == PrivatePairKey(b, a).
func PrivatePairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

// LastMessageContent is what the chat list shows for a message.
func LastMessageContent(m *Message) string {
	if strings.TrimSpace(m.Content) != "" {
		return m.Content
	}
	return "Sent a " + m.MessageType
}
