package worker

import (
	"context"
	"fmt"

	"github.com/ThinkYuvraj/Sociale/internal/queue"
)

func (wp *WorkerPool) HandleJob(ctx context.Context, job queue.Job) error {
	switch job.Type {
	case queue.JobTypePushOfflineMessage:
		return wp.handler.HandlePushOfflineMessage(ctx, job.Payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
