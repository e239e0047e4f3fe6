package worker_service

import (
	"context"
	"fmt"

	"github.com/ThinkYuvraj/Sociale/config"
	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// PushNotifier delivers a single offline-message notification.
type PushNotifier interface {
	Push(ctx context.Context, to entity.User, msg chat_dto.OfflineMessagePayload) error
}

// LogNotifier only records the notification. Used when no mail transport
// is configured.
type LogNotifier struct{}

func (LogNotifier) Push(_ context.Context, to entity.User, msg chat_dto.OfflineMessagePayload) error {
	log.Info().
		Str("userID", to.ID).
		Str("chatID", msg.ChatID).
		Str("messageID", msg.MessageID).
		Str("from", msg.SenderName).
		Msg("offline message notification")
	return nil
}

type MailNotifier struct {
	from string
	send func(m ...*gomail.Message) error
}

func NewMailNotifier(host string, port int, username, password, from string) *MailNotifier {
	d := gomail.NewDialer(host, port, username, password)
	return &MailNotifier{from: from, send: d.DialAndSend}
}

// NewPushNotifier picks the mail transport when an SMTP host is configured.
func NewPushNotifier(conf *config.AppConfig) PushNotifier {
	mail := conf.MAILTRAP
	if mail.SMTPHost == "" {
		return LogNotifier{}
	}
	return NewMailNotifier(mail.SMTPHost, mail.SMTPPort, mail.Username, mail.Password, mail.From)
}

func (n *MailNotifier) Push(ctx context.Context, to entity.User, msg chat_dto.OfflineMessagePayload) error {
	if to.Email == "" {
		log.Debug().Str("userID", to.ID).Msg("no email on file, skipping offline notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to.Email)
	m.SetHeader("Subject", fmt.Sprintf("New message from %s", msg.SenderName))
	m.SetBody("text/plain", fmt.Sprintf("Hello %s,\n\n%s sent you a message:\n\n%s", to.Username, msg.SenderName, msg.Preview))

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	return nil
}
