package worker

import (
	"context"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	"github.com/ThinkYuvraj/Sociale/internal/queue"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StartDLQRetryConsumer re-runs persisted dead jobs every RetryInterval,
// backing off per job until it succeeds or reaches MaxRetryCount.
func (wp *WorkerPool) StartDLQRetryConsumer(ctx context.Context) {
	if wp.Mongo == nil {
		return
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()

		log.Info().Msg("DLQ retry consumer started")
		ticker := time.NewTicker(wp.DLQConfig.RetryInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("DLQ retry consumer stopping")
				return
			case <-ticker.C:
				wp.processDLQJobs(ctx)
			}
		}
	}()
}

func (wp *WorkerPool) dueDLQJobs(ctx context.Context, coll *mongo.Collection) ([]entity.DLQJob, error) {
	filter := bson.M{
		"status":      bson.M{"$in": bson.A{entity.DLQStatusPending, entity.DLQStatusFailed}},
		"retry_count": bson.M{"$lt": wp.DLQConfig.MaxRetryCount},
		"$or": bson.A{
			bson.M{"next_retry_at": bson.M{"$exists": false}},
			bson.M{"next_retry_at": bson.M{"$lte": time.Now().UTC()}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(wp.DLQConfig.BatchSize))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []entity.DLQJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (wp *WorkerPool) processDLQJobs(ctx context.Context) {
	coll := wp.dlqCollection()

	jobs, err := wp.dueDLQJobs(ctx, coll)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query DLQ jobs")
		return
	}
	if len(jobs) == 0 {
		log.Debug().Msg("No DLQ jobs to process")
		return
	}

	log.Info().Int("count", len(jobs)).Msg("Processing DLQ jobs")
	for i := range jobs {
		wp.retryDLQJob(ctx, coll, &jobs[i])
	}
}

func (wp *WorkerPool) retryDLQJob(ctx context.Context, coll *mongo.Collection, dlqJob *entity.DLQJob) {
	logger := log.With().Str("job_id", dlqJob.JobID).Str("type", dlqJob.Type).Logger()

	// claim it; another instance may have picked it up since the query
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": dlqJob.ID, "status": dlqJob.Status},
		bson.M{"$set": bson.M{"status": entity.DLQStatusProcessing, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to update DLQ job status")
		return
	}
	if res.MatchedCount == 0 {
		return
	}

	var job queue.Job
	if err := json.Unmarshal(dlqJob.Payload, &job); err != nil {
		logger.Error().Err(err).Msg("Failed to unmarshal job payload")
		wp.setDLQStatus(ctx, coll, dlqJob.ID, entity.DLQStatusPermanentlyFailed, bson.M{
			"reason":    "invalid_payload",
			"error_msg": err.Error(),
			"failed_at": time.Now().UTC(),
		})
		return
	}

	job.Retry = 0
	job.ErrorMsg = ""

	if err := wp.HandleJob(ctx, job); err != nil {
		wp.handleDLQRetryFailure(ctx, coll, dlqJob, err.Error())
		return
	}

	wp.setDLQStatus(ctx, coll, dlqJob.ID, entity.DLQStatusCompleted, bson.M{"completed_at": time.Now().UTC()})
	logger.Info().Int("dlq_retry_count", dlqJob.RetryCount).Msg("DLQ job successfully retried")
}

func (wp *WorkerPool) handleDLQRetryFailure(ctx context.Context, coll *mongo.Collection, dlqJob *entity.DLQJob, errorMsg string) {
	attempts := dlqJob.RetryCount + 1
	logger := log.With().Str("job_id", dlqJob.JobID).Str("type", dlqJob.Type).Int("dlq_retry_count", attempts).Logger()

	if attempts >= wp.DLQConfig.MaxRetryCount {
		wp.setDLQStatus(ctx, coll, dlqJob.ID, entity.DLQStatusPermanentlyFailed, bson.M{
			"retry_count": attempts,
			"error_msg":   errorMsg,
			"failed_at":   time.Now().UTC(),
		})
		logger.Error().Msg("DLQ job permanently failed after max retries")
		return
	}

	nextRetryAt := time.Now().UTC().Add(wp.DLQConfig.NextDelay(attempts))
	wp.setDLQStatus(ctx, coll, dlqJob.ID, entity.DLQStatusFailed, bson.M{
		"retry_count":   attempts,
		"error_msg":     errorMsg,
		"next_retry_at": nextRetryAt,
	})
	logger.Warn().Time("next_retry_at", nextRetryAt).Msg("DLQ job scheduled for retry")
}

func (wp *WorkerPool) setDLQStatus(ctx context.Context, coll *mongo.Collection, id bson.ObjectID, status string, fields bson.M) {
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	if _, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		log.Error().Err(err).Str("id", id.Hex()).Str("status", status).Msg("Failed to update DLQ job")
	}
}
