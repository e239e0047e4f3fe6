package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/rs/zerolog/log"
)

const (
	offlineMaxRetry = 5
	offlineTTL      = 24 * time.Hour
)

// OfflineNotifier hands offline recipients of a message to the worker
// pool as a push job.
type OfflineNotifier struct {
	producer Producer
}

func NewOfflineNotifier(producer Producer) *OfflineNotifier {
	return &OfflineNotifier{producer: producer}
}

func (n *OfflineNotifier) NotifyOffline(ctx context.Context, payload chat_dto.OfflineMessagePayload) error {
	job, err := NewJob(JobTypePushOfflineMessage, payload, offlineMaxRetry, offlineTTL)
	if err != nil {
		return fmt.Errorf("failed to build push job: %w", err)
	}

	if err := n.producer.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue push job: %w", err)
	}

	log.Debug().Str("job_id", job.ID).Str("chatID", payload.ChatID).Int("recipients", len(payload.Recipients)).Msg("queued offline push")
	return nil
}
