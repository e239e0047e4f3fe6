package worker

import (
	"context"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	"github.com/ThinkYuvraj/Sociale/internal/queue"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const dlqRetention = 7 * 24 * time.Hour

func (wp *WorkerPool) dlqCollection() *mongo.Collection {
	return wp.Mongo.Collection(wp.DLQConfig.CollectionName)
}

// StartDLQWorker drains the Redis dead letter list into the Mongo DLQ
// collection. Without Mongo the list is left untouched.
func (wp *WorkerPool) StartDLQWorker(ctx context.Context) {
	if wp.Mongo == nil {
		log.Warn().Msg("DLQ worker disabled: no mongo database")
		return
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()

		log.Info().Msg("DLQ worker started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("DLQ worker stopping")
				return
			default:
				result, err := wp.Redis.BLPop(ctx, 10*time.Second, queue.DLQKey).Result()
				if err == redis.Nil {
					continue
				} else if err != nil {
					if ctx.Err() == nil {
						log.Error().Err(err).Msg("DLQWorker pop failed")
						time.Sleep(time.Second)
					}
					continue
				}

				wp.persistDLQJob(ctx, result[1])
			}
		}
	}()
}

func (wp *WorkerPool) persistDLQJob(ctx context.Context, payload string) {
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Warn().Err(err).Msg("DLQWorker invalid job payload")
		return
	}

	log.Error().
		Str("job_id", job.ID).
		Str("type", job.Type).
		Str("error", job.ErrorMsg).
		Msg("DLQ job detected")

	now := time.Now().UTC()
	dlqDoc := entity.DLQJob{
		JobID:              job.ID,
		Type:               job.Type,
		Payload:            []byte(payload),
		Status:             entity.DLQStatusPending,
		RetryCount:         0,
		OriginalRetryCount: job.Retry,
		ErrorMsg:           job.ErrorMsg,
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpireAt:           now.Add(dlqRetention),
	}

	if _, err := wp.dlqCollection().InsertOne(ctx, dlqDoc); err != nil {
		log.Error().Err(err).Msg("Failed to persist DLQ job to MongoDB")

		// put it back so the next pop tries again
		wp.Redis.RPush(context.Background(), queue.DLQKey, payload)
		return
	}

	log.Info().Str("job_id", job.ID).Msg("DLQ job persisted to MongoDB")
}

func (wp *WorkerPool) GetDLQStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	pending, err := wp.Redis.LLen(ctx, queue.DLQKey).Result()
	if err != nil {
		return nil, err
	}
	stats["queued"] = pending

	if wp.Mongo == nil {
		return stats, nil
	}

	pipeline := bson.A{
		bson.M{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := wp.dlqCollection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var result struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		stats[result.Status] = result.Count
	}

	return stats, cursor.Err()
}
