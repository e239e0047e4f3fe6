package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, job Job) error
}

type RedisProducer struct {
	Redis *redis.Client
}

func NewProducer(redis *redis.Client) *RedisProducer {
	return &RedisProducer{Redis: redis}
}

// Enqueue schedules job at job.RunAt; workers pick up members whose score
// is not in the future.
func (p *RedisProducer) Enqueue(ctx context.Context, job Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return p.Redis.ZAdd(ctx, QueueKey, redis.Z{
		Score:  float64(job.RunAt),
		Member: jobBytes,
	}).Err()
}
