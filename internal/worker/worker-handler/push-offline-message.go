package worker_handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/rs/zerolog/log"
)

// HandlePushOfflineMessage notifies every recipient of the payload. Any
// failed delivery fails the job so the pool retries it; recipients that
// already got the notification may receive it again.
func (wh *WorkerHandler) HandlePushOfflineMessage(ctx context.Context, payload []byte) error {
	var msg chat_dto.OfflineMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("invalid push payload: %w", err)
	}

	if len(msg.Recipients) == 0 {
		return nil
	}

	users, appErr := wh.Users.FindUsersByIDs(ctx, msg.Recipients)
	if appErr != nil {
		return appErr
	}

	var errs []error
	for _, user := range users {
		if err := wh.Notifier.Push(ctx, user, msg); err != nil {
			log.Warn().Err(err).Str("userID", user.ID).Str("chatID", msg.ChatID).Msg("offline push failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
