package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/dtos/chat_dto"
	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/queue"
	"github.com/ThinkYuvraj/Sociale/internal/utils/types"
	worker_handler "github.com/ThinkYuvraj/Sociale/internal/worker/worker-handler"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsers struct{}

func (memoryUsers) FindUserByID(ctx context.Context, id string) (*entity.User, *app_error.AppError) {
	return &entity.User{ID: id, Username: id}, nil
}

func (memoryUsers) FindUsersByIDs(ctx context.Context, ids []string) ([]entity.User, *app_error.AppError) {
	out := make([]entity.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, entity.User{ID: id, Username: id})
	}
	return out, nil
}

func (memoryUsers) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) *app_error.AppError {
	return nil
}

func (memoryUsers) ResetPresence(ctx context.Context) *app_error.AppError { return nil }

type countingPush struct {
	mu    sync.Mutex
	calls int
	err   error
	done  chan struct{}
}

func (c *countingPush) Push(ctx context.Context, to entity.User, msg chat_dto.OfflineMessagePayload) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.done != nil {
		c.done <- struct{}{}
	}
	return c.err
}

func newPool(t *testing.T, push *countingPush) (*miniredis.Miniredis, *redis.Client, *WorkerPool) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	wp := NewWorkerPool(rdb, nil, 2, types.DLQRetryConfig{}, worker_handler.NewWorkerHandler(memoryUsers{}, push))
	wp.PollInterval = 10 * time.Millisecond
	wp.RetryBase = time.Hour
	return mr, rdb, wp
}

func enqueue(t *testing.T, rdb *redis.Client, maxRetry int) queue.Job {
	job, err := queue.NewJob(queue.JobTypePushOfflineMessage, chat_dto.OfflineMessagePayload{
		ChatID:     "c1",
		Recipients: []string{"bob"},
	}, maxRetry, time.Hour)
	require.NoError(t, err)
	require.NoError(t, queue.NewProducer(rdb).Enqueue(context.Background(), job))
	return job
}

func TestWorkerPool_ProcessesDueJob(t *testing.T) {
	push := &countingPush{done: make(chan struct{}, 1)}
	mr, rdb, wp := newPool(t, push)
	enqueue(t, rdb, 3)

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	select {
	case <-push.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
	cancel()
	wp.Wait()

	members, _ := mr.ZMembers(queue.QueueKey)
	assert.Empty(t, members)
}

func TestWorkerPool_FailedJobIsRescheduled(t *testing.T) {
	_, rdb, wp := newPool(t, &countingPush{err: errors.New("smtp down")})
	job := enqueue(t, rdb, 3)

	wp.fail(context.Background(), job, errors.New("smtp down"))

	members, err := rdb.ZRangeWithScores(context.Background(), queue.QueueKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, 2, "original plus rescheduled copy")

	var retried queue.Job
	require.NoError(t, json.Unmarshal([]byte(members[1].Member.(string)), &retried))
	assert.Equal(t, 1, retried.Retry)
	assert.Equal(t, "smtp down", retried.ErrorMsg)
	assert.Greater(t, retried.RunAt, time.Now().Unix())
}

func TestWorkerPool_ExhaustedJobGoesToDLQ(t *testing.T) {
	mr, rdb, wp := newPool(t, &countingPush{})
	job := enqueue(t, rdb, 1)

	wp.fail(context.Background(), job, errors.New("boom"))

	dead, err := mr.List(queue.DLQKey)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	var got queue.Job
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &got))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "boom", got.ErrorMsg)
}

func TestWorkerPool_ShutdownRequeuesBufferedJobs(t *testing.T) {
	_, rdb, wp := newPool(t, &countingPush{err: errors.New("apns down")})

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := queue.NewJob(queue.JobTypePushOfflineMessage, chat_dto.OfflineMessagePayload{
			ChatID:     "c1",
			Recipients: []string{"bob"},
		}, 5, time.Hour)
		require.NoError(t, err)
		raw, err := json.Marshal(job)
		require.NoError(t, err)
		wp.JobChannel <- string(raw)
		ids = append(ids, job.ID)
	}
	close(wp.JobChannel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wp.wg.Add(1)
	go wp.worker(ctx, 0)
	wp.Wait()

	members, err := rdb.ZRange(context.Background(), queue.QueueKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, len(ids), "every claimed job is back on the queue")

	var got []string
	for _, m := range members {
		var job queue.Job
		require.NoError(t, json.Unmarshal([]byte(m), &job))
		got = append(got, job.ID)
	}
	assert.ElementsMatch(t, ids, got)
}

func TestWorkerPool_FailRetriesWithCancelledContext(t *testing.T) {
	_, rdb, wp := newPool(t, &countingPush{})
	job, err := queue.NewJob(queue.JobTypePushOfflineMessage, chat_dto.OfflineMessagePayload{ChatID: "c1"}, 3, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wp.fail(ctx, job, errors.New("context canceled"))

	n, err := rdb.ZCard(context.Background(), queue.QueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWorkerPool_FutureJobsWait(t *testing.T) {
	_, rdb, wp := newPool(t, &countingPush{})

	job, _ := queue.NewJob(queue.JobTypePushOfflineMessage, nil, 1, time.Hour)
	job.RunAt = time.Now().Add(time.Hour).Unix()
	require.NoError(t, queue.NewProducer(rdb).Enqueue(context.Background(), job))

	_, ok := wp.claimNext(context.Background())
	assert.False(t, ok)
}

func TestHandleJob_UnknownType(t *testing.T) {
	_, _, wp := newPool(t, &countingPush{})

	err := wp.HandleJob(context.Background(), queue.Job{Type: "create_user_otp"})

	assert.ErrorContains(t, err, "unknown job type")
}

func TestGetDLQStats_WithoutMongo(t *testing.T) {
	mr, _, wp := newPool(t, &countingPush{})
	mr.RPush(queue.DLQKey, "a", "b")

	stats, err := wp.GetDLQStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["queued"])
}
