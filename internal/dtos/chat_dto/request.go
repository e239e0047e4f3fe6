package chat_dto

import "github.com/ThinkYuvraj/Sociale/internal/entity"

type CreateChatRequest struct {
	ChatType       string   `json:"chatType" validate:"required,oneof=private group"`
	ParticipantID  string   `json:"participantId" validate:"required_if=ChatType private"`
	ParticipantIDs []string `json:"participantIds" validate:"omitempty,dive,required"`
	GroupName      string   `json:"groupName" validate:"max=100"`
}

type MediaRequest struct {
	URL      string `json:"url" validate:"required,url"`
	PublicID string `json:"publicId"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize" validate:"gte=0"`
}

func (m *MediaRequest) ToEntity() *entity.Media {
	if m == nil {
		return nil
	}
	return &entity.Media{
		URL:      m.URL,
		PublicID: m.PublicID,
		FileName: m.FileName,
		FileSize: m.FileSize,
	}
}

type SendMessageRequest struct {
	Content     string        `json:"content" validate:"max=1000"`
	MessageType string        `json:"messageType" validate:"omitempty,oneof=text image video file"`
	Media       *MediaRequest `json:"media"`
}

type MessagesQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=100"`
}
