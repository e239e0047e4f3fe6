package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/queue"
	"github.com/ThinkYuvraj/Sociale/internal/utils/types"
	worker_handler "github.com/ThinkYuvraj/Sociale/internal/worker/worker-handler"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type WorkerPool struct {
	Redis        *redis.Client
	Mongo        *mongo.Database
	WorkerNum    int
	JobChannel   chan string
	DLQConfig    types.DLQRetryConfig
	PollInterval time.Duration
	RetryBase    time.Duration
	wg           sync.WaitGroup
	handler      *worker_handler.WorkerHandler
}

func NewWorkerPool(redis *redis.Client, mongo *mongo.Database, workerNum int, dlqConfig types.DLQRetryConfig, handler *worker_handler.WorkerHandler) *WorkerPool {
	return &WorkerPool{
		Redis:        redis,
		Mongo:        mongo,
		WorkerNum:    workerNum,
		JobChannel:   make(chan string, 100),
		DLQConfig:    dlqConfig,
		PollInterval: time.Second,
		RetryBase:    5 * time.Second,
		handler:      handler,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	log.Info().Msgf("Starting worker pool with %d workers", wp.WorkerNum)

	for i := 0; i < wp.WorkerNum; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer close(wp.JobChannel)
		for {
			if ctx.Err() != nil {
				log.Info().Msg("Stopping worker pool")
				return
			}

			payload, ok := wp.claimNext(ctx)
			if !ok {
				select {
				case <-ctx.Done():
				case <-time.After(wp.PollInterval):
				}
				continue
			}

			select {
			case wp.JobChannel <- payload:
			case <-ctx.Done():
				// put it back for the next run
				wp.requeue(context.Background(), payload)
				return
			}
		}
	}()
}

// claimNext takes the oldest due job off the queue. ZRem decides ownership
// when several pools poll the same key.
func (wp *WorkerPool) claimNext(ctx context.Context) (string, bool) {
	now := float64(time.Now().Unix())
	result, err := wp.Redis.ZRangeByScore(ctx, queue.QueueKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%f", now),
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Worker: failed to pop job")
		}
		return "", false
	}
	if len(result) == 0 {
		return "", false
	}

	removed, err := wp.Redis.ZRem(ctx, queue.QueueKey, result[0]).Result()
	if err != nil || removed == 0 {
		return "", false
	}
	return result[0], true
}

func (wp *WorkerPool) requeue(ctx context.Context, payload string) {
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return
	}
	if err := wp.Redis.ZAdd(ctx, queue.QueueKey, redis.Z{Score: float64(job.RunAt), Member: payload}).Err(); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to requeue job on shutdown")
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Info().Msgf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("Worker %d stopping", id)
			wp.drain()
			return
		case payload, ok := <-wp.JobChannel:
			if !ok {
				return
			}

			var job queue.Job
			if err := json.Unmarshal([]byte(payload), &job); err != nil {
				log.Warn().Err(err).Msgf("Worker %d: Failed to unmarshal job payload", id)
				continue
			}

			if err := wp.HandleJob(ctx, job); err != nil {
				wp.fail(ctx, job, err)
			}
		}
	}
}

// drain puts claimed but unhandled payloads back on the queue. It returns
// once the dispatcher has closed JobChannel.
func (wp *WorkerPool) drain() {
	for payload := range wp.JobChannel {
		wp.requeue(context.Background(), payload)
	}
}

func (wp *WorkerPool) fail(ctx context.Context, job queue.Job, err error) {
	// the job must survive even when it failed because of shutdown
	ctx = context.WithoutCancel(ctx)

	job.Retry++
	job.ErrorMsg = err.Error()

	if job.Retry >= job.MaxRetry || job.Expired(time.Now()) {
		log.Error().Str("job_id", job.ID).Msg("Job moved to DLQ")
		dlqBytes, _ := json.Marshal(job)
		if err := wp.Redis.RPush(ctx, queue.DLQKey, dlqBytes).Err(); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("failed to push job to DLQ")
		}

		sendDLA(job)
		return
	}

	delay := wp.RetryBase * time.Duration(1<<job.Retry)
	job.RunAt = time.Now().Add(delay).Unix()

	jobBytes, _ := json.Marshal(job)
	if err := wp.Redis.ZAdd(ctx, queue.QueueKey, redis.Z{
		Score:  float64(job.RunAt),
		Member: jobBytes,
	}).Err(); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to reschedule job")
		return
	}
	log.Warn().Str("job_id", job.ID).Msgf("Retrying in %v seconds (%d/%d)", delay.Seconds(), job.Retry, job.MaxRetry)
}

var dlaCache = make(map[string]time.Time)
var dlaMu sync.Mutex

// sendDLA logs a dead letter alert, at most once per job type every ten minutes.
func sendDLA(job queue.Job) {
	dlaMu.Lock()
	defer dlaMu.Unlock()

	now := time.Now()
	lastAlert, ok := dlaCache[job.Type]
	if ok && now.Sub(lastAlert) < 10*time.Minute {
		return
	}

	log.Error().Str("job_id", job.ID).Str("type", job.Type).Str("error", job.ErrorMsg).Msg("Dead Letter Alert: job failed permanently")

	dlaCache[job.Type] = now
}

func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
	log.Info().Msg("All workers have stopped")
}
